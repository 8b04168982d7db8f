package minidb

import (
	"fmt"
	"slices"
)

type PageIndex uint32

// NoNextLeaf marks the last leaf of the sibling chain. Page 0 is always
// the very first leaf so it can never be anybody's right sibling.
const NoNextLeaf PageIndex = 0

// Page is either a leaf or an internal node, exactly one of the two is set.
type Page struct {
	Index        PageIndex
	LeafNode     *LeafNode
	InternalNode *InternalNode
}

func NewLeafPage(pageIdx PageIndex) *Page {
	return &Page{
		Index: pageIdx,
		LeafNode: &LeafNode{
			Records: make([]Record, 0),
		},
	}
}

func NewInternalPage(pageIdx PageIndex, keys []int32, children []PageIndex) *Page {
	return &Page{
		Index: pageIdx,
		InternalNode: &InternalNode{
			Keys:     keys,
			Children: children,
		},
	}
}

func NewPage(pageIdx PageIndex, pageType PageType) (*Page, error) {
	switch pageType {
	case PageTypeLeaf:
		return NewLeafPage(pageIdx), nil
	case PageTypeInternal:
		return NewInternalPage(pageIdx, make([]int32, 0), make([]PageIndex, 0)), nil
	default:
		return nil, fmt.Errorf("%w: cannot create page of type %s", ErrWrongPageType, pageType)
	}
}

func (p *Page) IsLeaf() bool {
	return p.LeafNode != nil
}

func (p *Page) Type() PageType {
	if p.IsLeaf() {
		return PageTypeLeaf
	}
	return PageTypeInternal
}

// Count returns number of records of a leaf or number of keys of an internal node.
func (p *Page) Count() int {
	if p.IsLeaf() {
		return len(p.LeafNode.Records)
	}
	return len(p.InternalNode.Keys)
}

func (p *Page) IsFull(config Config) bool {
	if p.IsLeaf() {
		return len(p.LeafNode.Records) >= config.MaxLeafRecords
	}
	return len(p.InternalNode.Keys) >= config.MaxInternalKeys
}

func (p *Page) Leaf() (*LeafNode, error) {
	if p.LeafNode == nil {
		return nil, fmt.Errorf("%w: page %d is not a leaf", ErrWrongPageType, p.Index)
	}
	return p.LeafNode, nil
}

func (p *Page) Internal() (*InternalNode, error) {
	if p.InternalNode == nil {
		return nil, fmt.Errorf("%w: page %d is not an internal node", ErrWrongPageType, p.Index)
	}
	return p.InternalNode, nil
}

// Clone creates a deep copy of the page.
func (p *Page) Clone() *Page {
	pageCopy := &Page{
		Index: p.Index,
	}
	if p.LeafNode != nil {
		pageCopy.LeafNode = &LeafNode{
			NextLeaf: p.LeafNode.NextLeaf,
			Records:  slices.Clone(p.LeafNode.Records),
		}
	} else if p.InternalNode != nil {
		pageCopy.InternalNode = &InternalNode{
			Keys:     slices.Clone(p.InternalNode.Keys),
			Children: slices.Clone(p.InternalNode.Children),
		}
	}
	return pageCopy
}

// Header is always derived from the body so a persisted page can never
// carry a stale count.
func (p *Page) Header(schema Schema) Header {
	if p.IsLeaf() {
		return Header{
			Count:     uint16(len(p.LeafNode.Records)),
			Type:      PageTypeLeaf,
			FreeSpace: uint16(PageSize - HeaderSize - len(p.LeafNode.Records)*schema.RecordSize()),
			NextLeaf:  p.LeafNode.NextLeaf,
		}
	}
	return Header{
		Count:     uint16(len(p.InternalNode.Keys)),
		Type:      PageTypeInternal,
		FreeSpace: uint16(PageSize - HeaderSize - p.InternalNode.bodySize()),
	}
}

// Marshal serializes the page into buf which must be at least PageSize long.
// Oversized nodes (which exist transiently in memory during a split) are refused.
func (p *Page) Marshal(schema Schema, buf []byte) ([]byte, error) {
	if len(buf) < PageSize {
		return nil, fmt.Errorf("page buffer too small: %d", len(buf))
	}
	buf = buf[:PageSize]

	if p.LeafNode == nil && p.InternalNode == nil {
		return nil, fmt.Errorf("%w: page %d is neither leaf nor internal node", ErrWrongPageType, p.Index)
	}

	if p.IsLeaf() {
		if len(p.LeafNode.Records) > schema.MaxLeafRecords() {
			return nil, fmt.Errorf("%w: leaf page %d holds %d records, max %d", ErrPageFull, p.Index, len(p.LeafNode.Records), schema.MaxLeafRecords())
		}
	} else {
		if err := p.InternalNode.validate(); err != nil {
			return nil, fmt.Errorf("page %d: %w", p.Index, err)
		}
		if len(p.InternalNode.Keys) > MaxInternalKeys {
			return nil, fmt.Errorf("%w: internal page %d holds %d keys, max %d", ErrPageFull, p.Index, len(p.InternalNode.Keys), MaxInternalKeys)
		}
	}

	aHeader := p.Header(schema)
	aHeader.Marshal(buf)
	i := aHeader.Size()

	if p.IsLeaf() {
		recordSize := uint64(schema.RecordSize())
		for _, aRecord := range p.LeafNode.Records {
			if err := schema.marshalRecord(buf[i:i+recordSize], aRecord); err != nil {
				return nil, fmt.Errorf("page %d: %w", p.Index, err)
			}
			i += recordSize
		}
	} else {
		i += p.InternalNode.marshal(buf[i:])
	}

	clear(buf[i:])

	return buf, nil
}

func UnmarshalPage(pageIdx PageIndex, schema Schema, buf []byte) (*Page, error) {
	if len(buf) != PageSize {
		return nil, fmt.Errorf("%w: page %d is %d bytes, expected %d", ErrCorruptPage, pageIdx, len(buf), PageSize)
	}

	var aHeader Header
	i, err := aHeader.Unmarshal(buf)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", pageIdx, err)
	}

	if aHeader.Type == PageTypeInternal {
		internal := new(InternalNode)
		if err := internal.unmarshal(aHeader, buf[i:]); err != nil {
			return nil, fmt.Errorf("page %d: %w", pageIdx, err)
		}
		return &Page{Index: pageIdx, InternalNode: internal}, nil
	}

	count := int(aHeader.Count)
	if count > schema.MaxLeafRecords() {
		return nil, fmt.Errorf("%w: leaf page %d claims %d records, max %d", ErrCorruptPage, pageIdx, count, schema.MaxLeafRecords())
	}

	leaf := &LeafNode{
		NextLeaf: aHeader.NextLeaf,
		Records:  make([]Record, 0, count),
	}
	recordSize := uint64(schema.RecordSize())
	for idx := 0; idx < count; idx++ {
		aRecord, err := schema.Unmarshal(buf[i : i+recordSize])
		if err != nil {
			return nil, fmt.Errorf("page %d record %d: %w", pageIdx, idx, err)
		}
		leaf.Records = append(leaf.Records, aRecord)
		i += recordSize
	}

	return &Page{Index: pageIdx, LeafNode: leaf}, nil
}

type LeafNode struct {
	NextLeaf PageIndex
	Records  []Record
}

func (n *LeafNode) HasNextLeaf() bool {
	return n.NextLeaf != NoNextLeaf
}

func (n *LeafNode) Record(idx int) (Record, error) {
	if idx < 0 || idx >= len(n.Records) {
		return Record{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, idx, len(n.Records))
	}
	return n.Records[idx], nil
}

// SetRecord overwrites a record in place, the record count does not change.
func (n *LeafNode) SetRecord(idx int, aRecord Record) error {
	if idx < 0 || idx >= len(n.Records) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, idx, len(n.Records))
	}
	n.Records[idx] = aRecord
	return nil
}

func (n *LeafNode) Append(maxRecords int, aRecord Record) error {
	if len(n.Records) >= maxRecords {
		return fmt.Errorf("%w: leaf already holds %d records", ErrPageFull, len(n.Records))
	}
	n.Records = append(n.Records, aRecord)
	return nil
}

// InsertAt shifts records at and after idx one slot to the right. It does not
// check capacity, the caller splits the node when it overflows.
func (n *LeafNode) InsertAt(idx int, aRecord Record) {
	n.Records = slices.Insert(n.Records, idx, aRecord)
}

func (n *LeafNode) Keys() []int32 {
	keys := make([]int32, 0, len(n.Records))
	for _, aRecord := range n.Records {
		keys = append(keys, aRecord.Key)
	}
	return keys
}

// lowerBound returns index of the first record with key >= the given key.
func (n *LeafNode) lowerBound(key int32) int {
	minIdx, maxIdx := 0, len(n.Records)
	for minIdx != maxIdx {
		idx := (minIdx + maxIdx) / 2
		if n.Records[idx].Key >= key {
			maxIdx = idx
		} else {
			minIdx = idx + 1
		}
	}
	return minIdx
}

// upperBound returns index of the first record with key > the given key.
func (n *LeafNode) upperBound(key int32) int {
	minIdx, maxIdx := 0, len(n.Records)
	for minIdx != maxIdx {
		idx := (minIdx + maxIdx) / 2
		if n.Records[idx].Key > key {
			maxIdx = idx
		} else {
			minIdx = idx + 1
		}
	}
	return minIdx
}

// InternalNode routes keys: everything under Children[i] is < Keys[i],
// everything under Children[i+1] is >= Keys[i].
type InternalNode struct {
	Keys     []int32
	Children []PageIndex
}

// ReadIndex returns copies of the keys and children.
func (n *InternalNode) ReadIndex() ([]int32, []PageIndex) {
	return slices.Clone(n.Keys), slices.Clone(n.Children)
}

func (n *InternalNode) WriteIndex(keys []int32, children []PageIndex) error {
	if len(children) != len(keys)+1 {
		return fmt.Errorf("%w: %d keys need %d children, got %d", ErrCorruptPage, len(keys), len(keys)+1, len(children))
	}
	n.Keys = slices.Clone(keys)
	n.Children = slices.Clone(children)
	return nil
}

// ChildIndex returns position of the child a key routes to (bisect right).
func (n *InternalNode) ChildIndex(key int32) int {
	minIdx, maxIdx := 0, len(n.Keys)
	for minIdx != maxIdx {
		idx := (minIdx + maxIdx) / 2
		if n.Keys[idx] > key {
			maxIdx = idx
		} else {
			minIdx = idx + 1
		}
	}
	return minIdx
}

// lowerChildIndex returns position of the leftmost child which can hold
// keys >= the given key (bisect left).
func (n *InternalNode) lowerChildIndex(key int32) int {
	minIdx, maxIdx := 0, len(n.Keys)
	for minIdx != maxIdx {
		idx := (minIdx + maxIdx) / 2
		if n.Keys[idx] >= key {
			maxIdx = idx
		} else {
			minIdx = idx + 1
		}
	}
	return minIdx
}

func (n *InternalNode) IndexOfChild(pageIdx PageIndex) (int, bool) {
	for idx, childIdx := range n.Children {
		if childIdx == pageIdx {
			return idx, true
		}
	}
	return 0, false
}

// InsertAfterChild places key right after the child at position idx and
// the new right child after the key.
func (n *InternalNode) InsertAfterChild(idx int, key int32, rightChild PageIndex) {
	n.Keys = slices.Insert(n.Keys, idx, key)
	n.Children = slices.Insert(n.Children, idx+1, rightChild)
}

func (n *InternalNode) validate() error {
	if len(n.Children) != len(n.Keys)+1 {
		return fmt.Errorf("%w: %d keys need %d children, got %d", ErrCorruptPage, len(n.Keys), len(n.Keys)+1, len(n.Children))
	}
	return nil
}

func (n *InternalNode) bodySize() int {
	return keyCountSize + len(n.Keys)*keySize + (len(n.Keys)+1)*pageIndexSize
}

func (n *InternalNode) marshal(buf []byte) uint64 {
	i := uint64(0)

	marshalUint16(buf, uint16(len(n.Keys)), i)
	i += keyCountSize

	for _, key := range n.Keys {
		marshalUint32(buf, uint32(key), i)
		i += keySize
	}
	for _, childIdx := range n.Children {
		marshalUint32(buf, uint32(childIdx), i)
		i += pageIndexSize
	}

	return i
}

func (n *InternalNode) unmarshal(aHeader Header, buf []byte) error {
	i := uint64(0)

	keysNum := int(unmarshalUint16(buf, i))
	i += keyCountSize

	if keysNum != int(aHeader.Count) {
		return fmt.Errorf("%w: header counts %d keys, body %d", ErrCorruptPage, aHeader.Count, keysNum)
	}
	if keysNum > MaxInternalKeys {
		return fmt.Errorf("%w: internal node claims %d keys, max %d", ErrCorruptPage, keysNum, MaxInternalKeys)
	}

	n.Keys = make([]int32, 0, keysNum)
	for idx := 0; idx < keysNum; idx++ {
		n.Keys = append(n.Keys, int32(unmarshalUint32(buf, i)))
		i += keySize
	}
	n.Children = make([]PageIndex, 0, keysNum+1)
	for idx := 0; idx < keysNum+1; idx++ {
		n.Children = append(n.Children, PageIndex(unmarshalUint32(buf, i)))
		i += pageIndexSize
	}

	return nil
}
