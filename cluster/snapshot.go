package cluster

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// Snapshot files carry the full site list plus index options so a server
// can swap datasets without touching the database. Naming scheme:
// sites-{numSites}p-{timestamp}-{uuid8}.zst

const snapshotExt = ".zst"

// SnapshotInfo describes one saved snapshot file.
type SnapshotInfo struct {
	ID        string    `json:"id"`
	NumSites  int       `json:"numSites"`
	Timestamp time.Time `json:"timestamp"`
	FileSize  int64     `json:"fileSize"`
}

// NewSnapshotPath returns a fresh snapshot filename under dir.
func NewSnapshotPath(dir string, numSites int) string {
	timestamp := time.Now().Format("20060102-150405")
	id := uuid.New().String()[:8]
	return filepath.Join(dir, fmt.Sprintf("sites-%dp-%s-%s%s", numSites, timestamp, id, snapshotExt))
}

// SaveSnapshot writes the loaded sites and options to path as a
// zstd-compressed stream.
func (ix *Index) SaveSnapshot(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer file.Close()

	bufWriter := bufio.NewWriterSize(file, 1024*1024)
	enc, err := zstd.NewWriter(bufWriter, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}

	if err := writeSites(enc, ix.opts, ix.sites); err != nil {
		enc.Close()
		return err
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to close encoder: %w", err)
	}
	if err := bufWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot written by SaveSnapshot and returns a fully
// built index. The stored options are kept; logger may be nil.
func LoadSnapshot(path string, logger *zap.Logger) (*Index, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	dec, err := zstd.NewReader(bufio.NewReaderSize(file, 1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer dec.Close()

	opts, sites, err := readSites(dec)
	if err != nil {
		return nil, err
	}
	opts.Logger = logger

	ix := NewIndex(opts)
	ix.Load(sites)
	return ix, nil
}

// ListSnapshots returns the snapshots under dir, newest first.
func ListSnapshots(dir string) ([]SnapshotInfo, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot dir: %w", err)
	}

	infos := make([]SnapshotInfo, 0, len(files))
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != snapshotExt {
			continue
		}
		stat, err := file.Info()
		if err != nil {
			continue
		}
		info, ok := parseSnapshotName(file.Name())
		if !ok {
			continue
		}
		info.FileSize = stat.Size()
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Timestamp.After(infos[j].Timestamp)
	})
	return infos, nil
}

// FindSnapshot locates the snapshot file carrying the given short ID.
func FindSnapshot(dir, id string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read snapshot dir: %w", err)
	}
	for _, file := range files {
		if strings.Contains(file.Name(), id) && strings.HasSuffix(file.Name(), snapshotExt) {
			return filepath.Join(dir, file.Name()), nil
		}
	}
	return "", fmt.Errorf("no snapshot found with id %s", id)
}

// parseSnapshotName decodes sites-{n}p-{date}-{time}-{id}.zst.
func parseSnapshotName(name string) (SnapshotInfo, bool) {
	parts := strings.Split(strings.TrimSuffix(name, snapshotExt), "-")
	if len(parts) != 5 || parts[0] != "sites" {
		return SnapshotInfo{}, false
	}
	numSites, err := strconv.Atoi(strings.TrimSuffix(parts[1], "p"))
	if err != nil {
		return SnapshotInfo{}, false
	}
	timestamp, err := time.Parse("20060102-150405", parts[2]+"-"+parts[3])
	if err != nil {
		return SnapshotInfo{}, false
	}
	return SnapshotInfo{ID: parts[4], NumSites: numSites, Timestamp: timestamp}, true
}
