package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// Store layers a MemoryCache over a DiskCache. Reads fall through to disk
// and promote hits into memory; writes go to both tiers.
type Store struct {
	memory *MemoryCache
	disk   *DiskCache
	config Config
}

// Open creates a store. An empty Dir keeps payloads in memory only.
func Open(cfg Config) (*Store, error) {
	s := &Store{memory: NewMemoryCache(cfg.MemoryCapacity), config: cfg}
	if cfg.Dir == "" {
		return s, nil
	}

	disk, err := NewDiskCache(cfg.Dir, cfg.DiskCapacity, cfg.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to open disk cache: %w", err)
	}
	s.disk = disk

	if cfg.TTL > 0 {
		if n := disk.RemoveOlderThan(time.Now().Add(-cfg.TTL)); n > 0 {
			log.Debug("Pruned expired speech cache entries", "count", n)
		}
	}
	return s, nil
}

// Get returns the payload for key, or ErrCacheMiss.
func (s *Store) Get(key string) ([]byte, error) {
	if data, ok := s.memory.Get(key); ok {
		return data, nil
	}
	if s.disk != nil {
		if data, ok := s.disk.Get(key); ok {
			_ = s.memory.Put(key, data)
			return data, nil
		}
	}
	return nil, ErrCacheMiss
}

// Put stores data in both tiers. A payload too large for memory is still
// written to disk.
func (s *Store) Put(key string, data []byte) error {
	var errs []error
	if err := s.memory.Put(key, data); err != nil && !errors.Is(err, ErrItemTooLarge) {
		errs = append(errs, fmt.Errorf("memory: %w", err))
	}
	if s.disk != nil {
		if err := s.disk.Put(key, data); err != nil {
			errs = append(errs, fmt.Errorf("disk: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Delete removes key from both tiers.
func (s *Store) Delete(key string) {
	s.memory.Delete(key)
	if s.disk != nil {
		s.disk.Delete(key)
	}
}

// Clear empties both tiers.
func (s *Store) Clear() error {
	s.memory.Clear()
	if s.disk != nil {
		return s.disk.Clear()
	}
	return nil
}

// Stats returns the counters of one tier. Disk stats are zero when the
// store is memory only.
func (s *Store) Stats(level Level) Stats {
	switch level {
	case LevelDisk:
		if s.disk == nil {
			return Stats{}
		}
		return s.disk.Stats()
	default:
		return s.memory.Stats()
	}
}

// Entries lists the payloads on disk, newest first.
func (s *Store) Entries() []Entry {
	if s.disk == nil {
		return nil
	}
	return s.disk.Entries()
}

// Dir returns the disk directory, or "".
func (s *Store) Dir() string {
	return s.config.Dir
}

// Close releases the disk tier.
func (s *Store) Close() error {
	if s.disk != nil {
		return s.disk.Close()
	}
	return nil
}
