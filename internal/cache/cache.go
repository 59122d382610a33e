package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/globalesm/pkg/safeconv"
)

const (
	// DefaultMaxEntries bounds the in-memory tier by entry count.
	DefaultMaxEntries = 4096
	// DefaultMaxBytes bounds the in-memory tier by total payload size.
	DefaultMaxBytes = 64 << 20
)

// Config configures a Store.
type Config struct {
	// MaxEntries bounds the in-memory tier. Zero uses DefaultMaxEntries.
	MaxEntries int
	// MaxBytes bounds the in-memory tier. Zero uses DefaultMaxBytes.
	MaxBytes int64
	// Dir enables the disk tier when non-empty.
	Dir string
}

// Store is a two-tier cache: memory first, then disk. Disk hits are
// promoted into memory. It is safe for concurrent use.
type Store struct {
	mem  *LRU[string, []byte]
	disk *Disk
}

// New creates a Store from cfg.
func New(cfg Config) (*Store, error) {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	store := &Store{
		mem: NewLRU(
			WithMaxEntries[string, []byte](maxEntries),
			WithMaxBytes[string](maxBytes, func(v []byte) int64 { return int64(len(v)) }),
		),
	}

	if cfg.Dir != "" {
		disk, err := NewDisk(cfg.Dir)
		if err != nil {
			return nil, err
		}

		store.disk = disk
	}

	return store, nil
}

// Get looks key up in memory, then on disk. Corrupt disk entries count as
// misses; any other disk failure is returned.
func (s *Store) Get(key string) ([]byte, bool, error) {
	if value, ok := s.mem.Get(key); ok {
		return value, true, nil
	}

	if s.disk == nil {
		return nil, false, nil
	}

	value, err := s.disk.Get(key)

	switch {
	case err == nil:
		s.mem.Put(key, value)

		return value, true, nil
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, ErrCorrupt):
		return nil, false, nil
	default:
		return nil, false, err
	}
}

// Put stores value in both tiers.
func (s *Store) Put(key string, value []byte) error {
	s.mem.Put(key, value)

	if s.disk == nil {
		return nil
	}

	return s.disk.Put(key, value)
}

// Stats returns the in-memory tier statistics.
func (s *Store) Stats() Stats {
	return s.mem.Stats()
}

// String renders the statistics for humans.
func (s Stats) String() string {
	return fmt.Sprintf("%s entries, %s, %.0f%% hit rate",
		humanize.Comma(int64(s.Entries)), humanize.Bytes(safeconv.ClampToUint64(s.CurrentSize)), s.HitRate()*100)
}

// Key derives the content address of a compiled module from the tool
// version, the source language, an options fingerprint, and the source bytes.
func Key(version, language, fingerprint string, src []byte) string {
	h := sha256.New()

	for _, part := range []string{version, language, fingerprint} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}

	h.Write(src)

	return hex.EncodeToString(h.Sum(nil))
}
