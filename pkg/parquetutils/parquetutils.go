package parquetutils

import (
	"github.com/cockroachdb/errors"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

// Concurrency is the parallel number of parquet marshal/unmarshal workers.
var Concurrency int64 = 8

// ReadAll reads all records from the parquet file.
func ReadAll[T any](sourceFile source.ParquetFile) ([]T, error) {
	r, err := reader.NewParquetReader(sourceFile, new(T), Concurrency)
	if err != nil {
		return nil, errors.Wrap(err, "can't create parquet reader")
	}
	defer r.ReadStop()

	data := make([]T, r.GetNumRows())
	if err = r.Read(&data); err != nil {
		return nil, errors.Wrap(err, "failed to read parquet data")
	}

	return data, nil
}

// WriteAll writes all records to the parquet file and finalizes it.
func WriteAll[T any](sourceFile source.ParquetFile, records []T) error {
	w, err := writer.NewParquetWriter(sourceFile, new(T), Concurrency)
	if err != nil {
		return errors.Wrap(err, "can't create parquet writer")
	}
	for i := range records {
		if err := w.Write(records[i]); err != nil {
			return errors.Wrapf(err, "failed to write parquet record %d", i)
		}
	}
	if err := w.WriteStop(); err != nil {
		return errors.Wrap(err, "failed to finalize parquet file")
	}
	return nil
}
