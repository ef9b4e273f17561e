package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
)

const (
	plainExt      = ".mp3"
	compressedExt = ".mp3.zst"
)

// DiskCache persists payloads as files in one directory. The directory is
// the index: entries are discovered on open and evicted by modification
// time, oldest first.
type DiskCache struct {
	dir      string
	capacity int64

	encoder *zstd.Encoder // nil when compression is disabled
	decoder *zstd.Decoder

	mu      sync.Mutex
	entries map[string]Entry
	size    int64
	stats   Stats
}

// NewDiskCache opens the cache in dir, creating it when needed.
func NewDiskCache(dir string, capacity int64, compressionLevel int) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dc := &DiskCache{
		dir:      dir,
		capacity: capacity,
		entries:  make(map[string]Entry),
	}

	var err error
	if compressionLevel > 0 {
		dc.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	// files written with compression stay readable after it is turned off
	dc.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	if err := dc.scan(); err != nil {
		return nil, err
	}
	return dc, nil
}

// scan rebuilds the in-memory index from the directory.
func (dc *DiskCache) scan() error {
	files, err := os.ReadDir(dc.dir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}
	for _, f := range files {
		key, ok := keyOf(f.Name())
		if !ok || f.IsDir() {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		dc.entries[key] = Entry{Key: key, Size: info.Size(), Modified: info.ModTime()}
		dc.size += info.Size()
	}
	return nil
}

func keyOf(name string) (string, bool) {
	for _, ext := range []string{compressedExt, plainExt} {
		if key, ok := strings.CutSuffix(name, ext); ok && key != "" {
			return key, true
		}
	}
	return "", false
}

func (dc *DiskCache) path(key string, compressed bool) string {
	if compressed {
		return filepath.Join(dc.dir, key+compressedExt)
	}
	return filepath.Join(dc.dir, key+plainExt)
}

// Get reads the payload for key. A file that cannot be read or decoded is
// removed and reported as a miss.
func (dc *DiskCache) Get(key string) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if _, ok := dc.entries[key]; !ok {
		dc.stats.Misses++
		return nil, false
	}

	data, err := dc.read(key)
	if err != nil {
		log.Debug("Dropping unreadable cache entry", "key", key, "err", err)
		dc.removeLocked(key)
		dc.stats.Misses++
		return nil, false
	}

	dc.stats.Hits++
	return data, true
}

func (dc *DiskCache) read(key string) ([]byte, error) {
	if b, err := os.ReadFile(dc.path(key, true)); err == nil {
		out, err := dc.decoder.DecodeAll(b, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCacheCorrupted, err)
		}
		return out, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return os.ReadFile(dc.path(key, false))
}

// Put writes value, evicting the oldest files to stay within capacity.
func (dc *DiskCache) Put(key string, value []byte) error {
	data, compressed := value, false
	if dc.encoder != nil {
		if packed := dc.encoder.EncodeAll(value, nil); len(packed) < len(value) {
			data, compressed = packed, true
		}
	}
	n := int64(len(data))

	dc.mu.Lock()
	defer dc.mu.Unlock()

	if n > dc.capacity {
		return ErrItemTooLarge
	}
	dc.removeLocked(key)
	dc.evictLocked(dc.capacity - n)

	if err := writeFile(dc.path(key, compressed), data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	dc.entries[key] = Entry{Key: key, Size: n, Modified: time.Now()}
	dc.size += n
	return nil
}

// Delete removes key.
func (dc *DiskCache) Delete(key string) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.removeLocked(key)
}

// Clear removes every payload file.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	var errs []error
	for key := range dc.entries {
		if err := dc.removeFiles(key); err != nil {
			errs = append(errs, err)
		}
	}
	dc.entries = make(map[string]Entry)
	dc.size = 0
	return errors.Join(errs...)
}

// RemoveOlderThan removes entries last written before cutoff.
func (dc *DiskCache) RemoveOlderThan(cutoff time.Time) int {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	removed := 0
	for key, e := range dc.entries {
		if e.Modified.Before(cutoff) {
			dc.removeLocked(key)
			removed++
		}
	}
	return removed
}

// Entries returns the stored entries, newest first.
func (dc *DiskCache) Entries() []Entry {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.sortedLocked(func(a, b Entry) int { return b.Modified.Compare(a.Modified) })
}

// Dir returns the cache directory.
func (dc *DiskCache) Dir() string {
	return dc.dir
}

// Size returns the bytes on disk.
func (dc *DiskCache) Size() int64 {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.size
}

// Stats returns usage counters.
func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	s := dc.stats
	s.Capacity = dc.capacity
	s.Size = dc.size
	s.Items = int64(len(dc.entries))
	return s
}

// Close releases the codec resources.
func (dc *DiskCache) Close() error {
	dc.decoder.Close()
	if dc.encoder != nil {
		return dc.encoder.Close()
	}
	return nil
}

func (dc *DiskCache) sortedLocked(cmp func(a, b Entry) int) []Entry {
	out := make([]Entry, 0, len(dc.entries))
	for _, e := range dc.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, cmp)
	return out
}

// evictLocked removes the oldest entries until at most limit bytes remain.
func (dc *DiskCache) evictLocked(limit int64) {
	if dc.size <= limit {
		return
	}
	for _, e := range dc.sortedLocked(func(a, b Entry) int { return a.Modified.Compare(b.Modified) }) {
		if dc.size <= limit {
			return
		}
		dc.removeLocked(e.Key)
		dc.stats.Evictions++
	}
}

func (dc *DiskCache) removeLocked(key string) {
	e, ok := dc.entries[key]
	if !ok {
		return
	}
	if err := dc.removeFiles(key); err != nil {
		log.Debug("Could not remove cache file", "key", key, "err", err)
	}
	delete(dc.entries, key)
	dc.size -= e.Size
}

func (dc *DiskCache) removeFiles(key string) error {
	var errs []error
	for _, compressed := range []bool{true, false} {
		if err := os.Remove(dc.path(key, compressed)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// writeFile writes to a temporary file and renames it into place.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
