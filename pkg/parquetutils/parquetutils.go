// Package parquetutils decodes parquet files held in memory.
package parquetutils

import (
	"github.com/cockroachdb/errors"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
)

// ReaderConcurrency is the number of goroutines a reader uses per file.
var ReaderConcurrency int64 = 8

// ReadAll decodes every row of file into T. T must carry parquet struct tags.
func ReadAll[T any](file source.ParquetFile) ([]T, error) {
	r, err := reader.NewParquetReader(file, new(T), ReaderConcurrency)
	if err != nil {
		return nil, errors.Wrap(err, "can't create parquet reader")
	}
	defer r.ReadStop()

	rows := make([]T, r.GetNumRows())
	if err := r.Read(&rows); err != nil {
		return nil, errors.Wrap(err, "failed to read parquet rows")
	}
	return rows, nil
}

// ReadBytes decodes every row of an in-memory parquet file.
func ReadBytes[T any](data []byte) ([]T, error) {
	rows, err := ReadAll[T](NewBufferFile(data))
	return rows, errors.WithStack(err)
}
