package minidb

import (
	"context"
	"slices"

	"github.com/stretchr/testify/mock"
)

// MockPager is a testify mock of the Pager port.
type MockPager struct {
	mock.Mock
}

func (_m *MockPager) ReadPage(_a0 context.Context, _a1 PageIndex) (*Page, error) {
	ret := _m.Called(_a0, _a1)

	var r0 *Page
	if rf, ok := ret.Get(0).(func(context.Context, PageIndex) *Page); ok {
		r0 = rf(_a0, _a1)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*Page)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, PageIndex) error); ok {
		r1 = rf(_a0, _a1)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

func (_m *MockPager) WritePage(_a0 context.Context, _a1 PageIndex, _a2 *Page) error {
	ret := _m.Called(_a0, _a1, _a2)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, PageIndex, *Page) error); ok {
		r0 = rf(_a0, _a1, _a2)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

func (_m *MockPager) AllocatePageID() PageIndex {
	ret := _m.Called()

	var r0 PageIndex
	if rf, ok := ret.Get(0).(func() PageIndex); ok {
		r0 = rf()
	} else {
		r0 = ret.Get(0).(PageIndex)
	}

	return r0
}

func (_m *MockPager) TotalPages() uint32 {
	ret := _m.Called()

	var r0 uint32
	if rf, ok := ret.Get(0).(func() uint32); ok {
		r0 = rf()
	} else {
		r0 = ret.Get(0).(uint32)
	}

	return r0
}

// NewMockPager registers a cleanup that asserts expectations.
func NewMockPager(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockPager {
	m := &MockPager{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// mockPageWithKeys matches a leaf page holding exactly the given keys.
func mockPageWithKeys(keys ...int32) any {
	return mock.MatchedBy(func(aPage *Page) bool {
		return aPage.IsLeaf() && slices.Equal(aPage.LeafNode.Keys(), keys)
	})
}
