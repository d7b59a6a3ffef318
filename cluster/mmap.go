package cluster

import (
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
	"go.uber.org/zap"
)

// mmapWriter writes sequentially into a memory-mapped region. It satisfies
// io.Writer so the shared site codec can target it directly.
type mmapWriter struct {
	data   mmap.MMap
	offset int
}

func (w *mmapWriter) Write(p []byte) (int, error) {
	if w.offset+len(p) > len(w.data) {
		return 0, fmt.Errorf("mmap write past end of region (offset %d, len %d, cap %d)",
			w.offset, len(p), len(w.data))
	}
	copy(w.data[w.offset:], p)
	w.offset += len(p)
	return len(p), nil
}

// mmapReader reads sequentially from a memory-mapped region.
type mmapReader struct {
	data   mmap.MMap
	offset int
}

func (r *mmapReader) Read(p []byte) (int, error) {
	if r.offset >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.offset:])
	r.offset += n
	return n, nil
}

// SaveSnapshotMMap writes the site records through a memory-mapped file
// sized exactly to the encoded layout. Unlike SaveSnapshot the output is
// uncompressed, trading disk for mapping the file straight back in.
func (ix *Index) SaveSnapshotMMap(path string) error {
	size := encodedSize(ix.sites)

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to create mmap file: %w", err)
	}
	defer file.Close()

	if err := file.Truncate(size); err != nil {
		return fmt.Errorf("failed to size mmap file: %w", err)
	}

	data, err := mmap.Map(file, mmap.RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to mmap file: %w", err)
	}
	defer data.Unmap()

	if err := writeSites(&mmapWriter{data: data}, ix.opts, ix.sites); err != nil {
		return err
	}
	if err := data.Flush(); err != nil {
		return fmt.Errorf("failed to flush mmap: %w", err)
	}
	return nil
}

// LoadSnapshotMMap maps a file written by SaveSnapshotMMap and builds an
// index from it. The mapping is released before returning; site data is
// copied out during decoding.
func LoadSnapshotMMap(path string, logger *zap.Logger) (*Index, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mmap file: %w", err)
	}
	defer file.Close()

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap file: %w", err)
	}
	defer data.Unmap()

	opts, sites, err := readSites(&mmapReader{data: data})
	if err != nil {
		return nil, err
	}
	opts.Logger = logger

	ix := NewIndex(opts)
	ix.Load(sites)
	return ix, nil
}
