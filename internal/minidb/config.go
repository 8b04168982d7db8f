package minidb

import (
	"fmt"
)

const (
	PageSize   = 4096 // 4 kilobytes
	HeaderSize = 9

	keySize       = 4
	pageIndexSize = 4
	keyCountSize  = 2

	// MaxInternalKeys is the worst case number of separator keys an internal
	// page body can hold: key count + N keys + N+1 children.
	MaxInternalKeys = (PageSize - HeaderSize - keyCountSize - pageIndexSize) / (keySize + pageIndexSize)
)

// Schema defines byte widths of the two text columns of a record.
type Schema struct {
	UsernameSize int
	EmailSize    int
}

var DefaultSchema = Schema{
	UsernameSize: 32,
	EmailSize:    255,
}

func (s Schema) RecordSize() int {
	return keySize + s.UsernameSize + s.EmailSize
}

// MaxLeafRecords is the number of records which physically fit into a leaf page body.
func (s Schema) MaxLeafRecords() int {
	return (PageSize - HeaderSize) / s.RecordSize()
}

type DuplicatePolicy int

const (
	DuplicatesAllow DuplicatePolicy = iota
	DuplicatesReject
)

func (p DuplicatePolicy) String() string {
	switch p {
	case DuplicatesAllow:
		return "allow"
	case DuplicatesReject:
		return "reject"
	default:
		return fmt.Sprintf("DuplicatePolicy(%d)", int(p))
	}
}

// Config is threaded through the pager and the b+tree. Capacities can be
// lowered in tests to force splits with only a handful of records.
type Config struct {
	Schema          Schema
	MaxLeafRecords  int
	MaxInternalKeys int
	Duplicates      DuplicatePolicy
}

func DefaultConfig() Config {
	return Config{
		Schema:          DefaultSchema,
		MaxLeafRecords:  DefaultSchema.MaxLeafRecords(),
		MaxInternalKeys: MaxInternalKeys,
		Duplicates:      DuplicatesAllow,
	}
}

func (c Config) Validate() error {
	if c.Schema.UsernameSize <= 0 || c.Schema.EmailSize <= 0 {
		return fmt.Errorf("%w: field sizes must be positive, got %d and %d", ErrInvalidConfig, c.Schema.UsernameSize, c.Schema.EmailSize)
	}
	if c.Schema.RecordSize() > PageSize-HeaderSize {
		return fmt.Errorf("%w: record size %d does not fit into a page", ErrInvalidConfig, c.Schema.RecordSize())
	}
	if c.MaxLeafRecords < 2 || c.MaxLeafRecords > c.Schema.MaxLeafRecords() {
		return fmt.Errorf("%w: max leaf records must be between 2 and %d, got %d", ErrInvalidConfig, c.Schema.MaxLeafRecords(), c.MaxLeafRecords)
	}
	if c.MaxInternalKeys < 2 || c.MaxInternalKeys > MaxInternalKeys {
		return fmt.Errorf("%w: max internal keys must be between 2 and %d, got %d", ErrInvalidConfig, MaxInternalKeys, c.MaxInternalKeys)
	}
	if c.Duplicates != DuplicatesAllow && c.Duplicates != DuplicatesReject {
		return fmt.Errorf("%w: unknown duplicate policy %s", ErrInvalidConfig, c.Duplicates)
	}
	return nil
}
