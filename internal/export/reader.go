package export

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/xtxerr/keysample/internal/types"
)

// Reader reads snapshot rows from a Parquet file.
type Reader struct {
	file   *os.File
	reader *parquet.GenericReader[KeyMetricRow]
	path   string
}

// NewReader opens a snapshot file.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &Reader{
		file:   f,
		reader: parquet.NewGenericReader[KeyMetricRow](f),
		path:   path,
	}, nil
}

// ReadAll reads every row into a snapshot. The snapshot time is taken from
// the first row.
func (r *Reader) ReadAll() (*types.Snapshot, error) {
	rows := make([]KeyMetricRow, r.reader.NumRows())

	n, err := r.reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	snap := &types.Snapshot{Entries: make([]types.KeyMetric, 0, n)}
	for i := 0; i < n; i++ {
		if i == 0 {
			snap.TakenAtMs = rows[i].TakenAtMs
		}
		snap.Add(types.KeyMetric{
			Key:    rows[i].Key,
			Metric: rows[i].Metric,
			Shard:  int(rows[i].Shard),
		})
	}

	return snap, nil
}

// NumRows returns the total number of rows in the file.
func (r *Reader) NumRows() int64 {
	return r.reader.NumRows()
}

// Close closes the reader.
func (r *Reader) Close() error {
	if err := r.reader.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// Path returns the file path.
func (r *Reader) Path() string {
	return r.path
}
