package minidb

import (
	"errors"
	"fmt"
)

// Validation errors, nothing is written to disk when these are returned.
var (
	ErrFieldTooLong  = fmt.Errorf("field too long")
	ErrInvalidText   = fmt.Errorf("invalid text field")
	ErrKeyOutOfRange = fmt.Errorf("key out of range")
	ErrDuplicateKey  = fmt.Errorf("duplicate key")
	ErrInvalidConfig = fmt.Errorf("invalid config")
)

// Decoding errors.
var (
	ErrCorruptRecord = fmt.Errorf("corrupt record")
	ErrCorruptPage   = fmt.Errorf("corrupt page")
	ErrCorruptFile   = fmt.Errorf("corrupt database file")
	ErrCorruptTree   = fmt.Errorf("corrupt b+tree")
)

// Violated preconditions, callers should treat these as bugs.
var (
	ErrPageFull        = fmt.Errorf("page full")
	ErrWrongPageType   = fmt.Errorf("wrong page type")
	ErrIndexOutOfRange = fmt.Errorf("record index out of range")
)

// I/O errors.
var (
	ErrPageOutOfRange = fmt.Errorf("page index out of range")
	ErrShortRead      = fmt.Errorf("short page read")
)

var ErrNoMoreRows = errors.New("no more rows")
