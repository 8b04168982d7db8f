package minidb

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

type Record struct {
	Key      int32
	Username string
	Email    string
}

// NewRecord validates that a key parsed as a wider integer fits into the
// fixed 4 byte key column.
func NewRecord(key int64, username, email string) (Record, error) {
	if key < math.MinInt32 || key > math.MaxInt32 {
		return Record{}, fmt.Errorf("%w: %d does not fit into 4 bytes", ErrKeyOutOfRange, key)
	}
	return Record{
		Key:      int32(key),
		Username: username,
		Email:    email,
	}, nil
}

func (r Record) String() string {
	return fmt.Sprintf("(%d, %s, %s)", r.Key, r.Username, r.Email)
}

// Validate checks text fields against schema widths without allocating a buffer.
func (s Schema) Validate(r Record) error {
	if err := validateText("username", r.Username, s.UsernameSize); err != nil {
		return err
	}
	return validateText("email", r.Email, s.EmailSize)
}

func validateText(name, value string, maxSize int) error {
	if len(value) > maxSize {
		return fmt.Errorf("%w: %s is %d bytes (max %d)", ErrFieldTooLong, name, len(value), maxSize)
	}
	if !utf8.ValidString(value) {
		return fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidText, name)
	}
	// Trailing zero bytes are indistinguishable from padding
	if strings.HasSuffix(value, "\x00") {
		return fmt.Errorf("%w: %s ends with a zero byte", ErrInvalidText, name)
	}
	return nil
}

func (s Schema) Marshal(r Record) ([]byte, error) {
	buf := make([]byte, s.RecordSize())
	if err := s.marshalRecord(buf, r); err != nil {
		return nil, err
	}
	return buf, nil
}

// marshalRecord writes the record into the first RecordSize bytes of buf,
// the text columns are zero padded.
func (s Schema) marshalRecord(buf []byte, r Record) error {
	if err := s.Validate(r); err != nil {
		return err
	}

	i := uint64(0)

	marshalUint32(buf, uint32(r.Key), i)
	i += keySize

	n := copy(buf[i:i+uint64(s.UsernameSize)], r.Username)
	clear(buf[i+uint64(n) : i+uint64(s.UsernameSize)])
	i += uint64(s.UsernameSize)

	n = copy(buf[i:i+uint64(s.EmailSize)], r.Email)
	clear(buf[i+uint64(n) : i+uint64(s.EmailSize)])

	return nil
}

func (s Schema) Unmarshal(buf []byte) (Record, error) {
	if len(buf) != s.RecordSize() {
		return Record{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrCorruptRecord, s.RecordSize(), len(buf))
	}

	i := uint64(0)

	key := int32(unmarshalUint32(buf, i))
	i += keySize

	username := bytes.TrimRight(buf[i:i+uint64(s.UsernameSize)], "\x00")
	i += uint64(s.UsernameSize)

	email := bytes.TrimRight(buf[i:i+uint64(s.EmailSize)], "\x00")

	if !utf8.Valid(username) {
		return Record{}, fmt.Errorf("%w: username of key %d is not valid UTF-8", ErrCorruptRecord, key)
	}
	if !utf8.Valid(email) {
		return Record{}, fmt.Errorf("%w: email of key %d is not valid UTF-8", ErrCorruptRecord, key)
	}

	return Record{
		Key:      key,
		Username: string(username),
		Email:    string(email),
	}, nil
}

func marshalUint16(buf []byte, n uint16, i uint64) []byte {
	buf[i+0] = byte(n >> 0)
	buf[i+1] = byte(n >> 8)
	return buf
}

func unmarshalUint16(buf []byte, i uint64) uint16 {
	return 0 |
		(uint16(buf[i+0]) << 0) |
		(uint16(buf[i+1]) << 8)
}

func marshalUint32(buf []byte, n uint32, i uint64) []byte {
	buf[i+0] = byte(n >> 0)
	buf[i+1] = byte(n >> 8)
	buf[i+2] = byte(n >> 16)
	buf[i+3] = byte(n >> 24)
	return buf
}

func unmarshalUint32(buf []byte, i uint64) uint32 {
	return 0 |
		(uint32(buf[i+0]) << 0) |
		(uint32(buf[i+1]) << 8) |
		(uint32(buf[i+2]) << 16) |
		(uint32(buf[i+3]) << 24)
}
