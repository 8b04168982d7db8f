package minidb

import (
	"errors"
	"io"
)

var errInjected = errors.New("injected failure")

// memFile is an in-memory DBFile. Reads past the end behave like os.File.
type memFile struct {
	data      []byte
	offset    int64
	syncs     int
	failWrite bool
	failSync  bool
	closed    bool
}

func newMemFile(data []byte) *memFile {
	return &memFile{data: data}
}

func (f *memFile) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.offset)
	f.offset += int64(n)
	return n, err
}

func (f *memFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		f.offset = offset
	case io.SeekCurrent:
		f.offset += offset
	case io.SeekEnd:
		f.offset = int64(len(f.data)) + offset
	}
	if f.offset < 0 {
		return 0, errors.New("negative offset")
	}
	return f.offset, nil
}

func (f *memFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *memFile) WriteAt(p []byte, off int64) (int, error) {
	if f.failWrite {
		return 0, errInjected
	}
	if end := off + int64(len(p)); end > int64(len(f.data)) {
		f.data = append(f.data, make([]byte, end-int64(len(f.data)))...)
	}
	return copy(f.data[off:], p), nil
}

func (f *memFile) Sync() error {
	if f.failSync {
		return errInjected
	}
	f.syncs += 1
	return nil
}

func (f *memFile) Close() error {
	f.closed = true
	return nil
}
