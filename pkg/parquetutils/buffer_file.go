// nolint: wrapcheck
package parquetutils

import (
	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/source"
)

var _ source.ParquetFile = (*BufferFile)(nil)

// BufferFile is a read-only source.ParquetFile over a byte slice.
type BufferFile struct {
	underlying *parquetbuffer.BufferFile
}

// NewBufferFile wraps data without copying it.
func NewBufferFile(data []byte) *BufferFile {
	return &BufferFile{underlying: parquetbuffer.NewBufferFileFromBytesNoAlloc(data)}
}

func (f *BufferFile) Create(string) (source.ParquetFile, error) {
	return &BufferFile{underlying: parquetbuffer.NewBufferFile()}, nil
}

// Open returns an independent reader over the same bytes. Parquet readers open one per column.
func (f *BufferFile) Open(string) (source.ParquetFile, error) {
	return NewBufferFile(f.underlying.Bytes()), nil
}

func (f *BufferFile) Seek(offset int64, whence int) (int64, error) {
	return f.underlying.Seek(offset, whence)
}

func (f *BufferFile) Read(p []byte) (int, error) {
	return f.underlying.Read(p)
}

func (f *BufferFile) Write(p []byte) (int, error) {
	return f.underlying.Write(p)
}

func (f *BufferFile) Close() error {
	return f.underlying.Close()
}
