package minidb

import (
	"fmt"
)

type PageType byte

const (
	PageTypeLeaf     PageType = 1
	PageTypeInternal PageType = 2
)

func (t PageType) String() string {
	switch t {
	case PageTypeLeaf:
		return "leaf"
	case PageTypeInternal:
		return "internal"
	default:
		return fmt.Sprintf("PageType(%d)", byte(t))
	}
}

// Header occupies the first HeaderSize bytes of every page:
//
//	u16 count | u8 type | u16 free space | u32 next leaf
type Header struct {
	Count     uint16
	Type      PageType
	FreeSpace uint16
	NextLeaf  PageIndex
}

func (h *Header) Size() uint64 {
	return HeaderSize
}

func (h *Header) Marshal(buf []byte) []byte {
	i := uint64(0)

	marshalUint16(buf, h.Count, i)
	i += 2

	buf[i] = byte(h.Type)
	i += 1

	marshalUint16(buf, h.FreeSpace, i)
	i += 2

	marshalUint32(buf, uint32(h.NextLeaf), i)

	return buf[:h.Size()]
}

func (h *Header) Unmarshal(buf []byte) (uint64, error) {
	if uint64(len(buf)) < h.Size() {
		return 0, fmt.Errorf("%w: header needs %d bytes, got %d", ErrCorruptPage, h.Size(), len(buf))
	}

	i := uint64(0)

	h.Count = unmarshalUint16(buf, i)
	i += 2

	h.Type = PageType(buf[i])
	if h.Type != PageTypeLeaf && h.Type != PageTypeInternal {
		return 0, fmt.Errorf("%w: unrecognised page type byte %d", ErrCorruptPage, buf[i])
	}
	i += 1

	h.FreeSpace = unmarshalUint16(buf, i)
	i += 2

	h.NextLeaf = PageIndex(unmarshalUint32(buf, i))

	return h.Size(), nil
}
