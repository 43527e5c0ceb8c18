package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/xtxerr/keysample/internal/errors"
	"github.com/xtxerr/keysample/internal/types"
)

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// ParseCompressionType parses a compression type string. Empty and "none"
// disable compression; unknown names fall back to zstd.
func ParseCompressionType(s string) CompressionType {
	switch s {
	case "snappy":
		return CompressionSnappy
	case "zstd":
		return CompressionZstd
	case "lz4":
		return CompressionLZ4
	case "gzip":
		return CompressionGzip
	case "none", "":
		return CompressionNone
	default:
		return CompressionZstd
	}
}

// codec returns the parquet-go compression codec.
func codec(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// KeyMetricRow is a tracked key in Parquet format.
type KeyMetricRow struct {
	Key       string `parquet:"key,zstd"`
	Metric    int64  `parquet:"metric"`
	Shard     int32  `parquet:"shard"`
	TakenAtMs int64  `parquet:"taken_at_ms"`
}

// Writer writes snapshots to a Parquet file.
type Writer struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	writer   *parquet.GenericWriter[KeyMetricRow]
	rowCount int64
	closed   bool
}

// NewWriter creates a snapshot writer at path, creating parent directories.
func NewWriter(path string, compression CompressionType) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	writer := parquet.NewGenericWriter[KeyMetricRow](f, parquet.Compression(codec(compression)))

	return &Writer{
		path:   path,
		file:   f,
		writer: writer,
	}, nil
}

// Write appends every entry of snap.
func (w *Writer) Write(snap *types.Snapshot) error {
	if snap == nil || snap.Len() == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.ErrWriterClosed
	}

	rows := make([]KeyMetricRow, snap.Len())
	for i, e := range snap.Entries {
		rows[i] = KeyMetricRow{
			Key:       e.Key,
			Metric:    e.Metric,
			Shard:     int32(e.Shard),
			TakenAtMs: snap.TakenAtMs,
		}
	}

	n, err := w.writer.Write(rows)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}

	w.rowCount += int64(n)
	return nil
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close writer: %w", err)
	}

	return w.file.Close()
}

// RowCount returns the number of rows written.
func (w *Writer) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowCount
}

// Path returns the file path.
func (w *Writer) Path() string {
	return w.path
}

// FileName returns the conventional file name for a snapshot taken at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("snapshot_%s.parquet", t.UTC().Format("2006-01-02_15-04-05"))
}

// WriteFile writes snap to a new file in dir and returns its path.
func WriteFile(dir string, snap *types.Snapshot, compression CompressionType) (string, error) {
	path := filepath.Join(dir, FileName(snap.TakenAt()))

	w, err := NewWriter(path, compression)
	if err != nil {
		return "", err
	}

	if err := w.Write(snap); err != nil {
		w.Close()
		return "", err
	}

	if err := w.Close(); err != nil {
		return "", err
	}
	return path, nil
}
