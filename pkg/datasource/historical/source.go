package historical

import (
	"errors"
	"fmt"
	"io"
	"os"
	"unsafe"

	"golang.org/x/exp/mmap"
)

var ErrEof = errors.New("EOF")

// Source gives random access to a file of fixed-size records of type T.
// T must not contain pointers or padding.
type Source[T any] struct {
	path      string
	reader    *mmap.ReaderAt
	entrySize int
}

func NewSource[T any](path string) *Source[T] {
	return &Source[T]{
		path:      path,
		entrySize: int(unsafe.Sizeof(*new(T))),
	}
}

func (s *Source[T]) Open() error {
	if s.entrySize == 0 {
		return fmt.Errorf("size of record type is zero")
	}
	reader, err := mmap.Open(s.path)
	if err != nil {
		return fmt.Errorf("unable to open data source %q: %w", s.path, err)
	}
	s.reader = reader
	return nil
}

func (s *Source[T]) Close() error {
	if s.reader == nil {
		return nil
	}
	return s.reader.Close()
}

func (s *Source[T]) Read(index int64, data *T) error {
	buffer := make([]byte, s.entrySize)

	n, err := s.reader.ReadAt(buffer, index*int64(s.entrySize))
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("unable to read record %d: %w", index, err)
	}
	if n < s.entrySize {
		return ErrEof
	}

	*data = *(*T)(unsafe.Pointer(&buffer[0])) // #nosec G103
	return nil
}

func (s *Source[T]) EntryCount() (int64, error) {
	fileInfo, err := os.Stat(s.path)
	if err != nil {
		return 0, fmt.Errorf("unable to get data source %q stats: %w", s.path, err)
	}

	totalSize := fileInfo.Size()
	if totalSize%int64(s.entrySize) != 0 {
		return 0, fmt.Errorf("file size %d is not a multiple of record size %d", totalSize, s.entrySize)
	}

	return totalSize / int64(s.entrySize), nil
}
