// Package scancache remembers what the host found in plugin libraries so that
// listing them does not require loading every library again.
//
// Entries are gob encoded, zstd compressed and stored in BadgerDB keyed by the
// canonical library path. An entry expires after the configured TTL; a TTL of
// zero keeps entries until they are overwritten or deleted.
package scancache

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/zstd"

	"dsplug.szuro.net/internal/logger"
	"dsplug.szuro.net/pkg/host"
	"dsplug.szuro.net/pkg/plugin"
)

// Summary is the scanned identity of one plugin.
type Summary struct {
	UniqueID string
	Caption  string
	Version  string
	Category string
	Usage    string
	Audio    int
	Events   int
	Controls int
}

// Entry is the scan result of one library file.
type Entry struct {
	Path      string
	Loader    string
	ModTime   time.Time
	ScannedAt time.Time
	Plugins   []Summary
}

// Fresh reports whether e was scanned from a file last modified at modTime.
func (e Entry) Fresh(modTime time.Time) bool {
	return e.ModTime.Equal(modTime)
}

// Summarize builds an entry from an open library.
func Summarize(lib *host.Library, modTime time.Time) Entry {
	e := Entry{
		Path:      lib.Path(),
		Loader:    lib.LoaderName(),
		ModTime:   modTime,
		ScannedAt: time.Now(),
	}
	for _, caps := range lib.Plugins() {
		e.Plugins = append(e.Plugins, Summary{
			UniqueID: caps.UniqueID(),
			Caption:  caps.Caption(),
			Version:  caps.Version(),
			Category: caps.Category(),
			Usage:    caps.UsageHint().String(),
			Audio:    caps.PortCount(plugin.PortAudio),
			Events:   caps.PortCount(plugin.PortEvent),
			Controls: caps.PortCount(plugin.PortControl),
		})
	}
	return e
}

type Cache struct {
	db  *badger.DB
	ttl time.Duration
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Open opens the cache stored in dir, or an in-memory cache when dir is empty.
func Open(dir string, ttl time.Duration) (*Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(logger.Default())
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open scan cache %q: %w", dir, err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	logger.Debug("Opened scan cache", slog.String("dir", dir), slog.Duration("ttl", ttl))
	return &Cache{db: db, ttl: ttl, enc: enc, dec: dec}, nil
}

func (c *Cache) encode(e Entry) ([]byte, error) {
	var value bytes.Buffer
	if err := gob.NewEncoder(&value).Encode(e); err != nil {
		return nil, err
	}
	return c.enc.EncodeAll(value.Bytes(), nil), nil
}

func (c *Cache) decode(val []byte) (Entry, error) {
	var e Entry
	raw, err := c.dec.DecodeAll(val, nil)
	if err != nil {
		return e, err
	}
	err = gob.NewDecoder(bytes.NewReader(raw)).Decode(&e)
	return e, err
}

// Put stores e, replacing any entry for the same path.
func (c *Cache) Put(e Entry) error {
	val, err := c.encode(e)
	if err != nil {
		return fmt.Errorf("failed to encode scan entry %s: %w", e.Path, err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(e.Path), val)
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Get returns the entry stored for path. The boolean is false when there is
// none or it has expired.
func (c *Cache) Get(path string) (Entry, bool, error) {
	var e Entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(path))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		e, err = c.decode(val)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to read scan entry %s: %w", path, err)
	}
	return e, true, nil
}

// List returns every live entry ordered by path. Entries that fail to decode
// are logged and skipped.
func (c *Cache) List() ([]Entry, error) {
	var entries []Entry
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				logger.Error("Failed to copy value from scan cache", slog.String("path", string(item.Key())), slog.Any("error", err))
				continue
			}
			e, err := c.decode(val)
			if err != nil {
				logger.Error("Failed to decode scan entry", slog.String("path", string(item.Key())), slog.Any("error", err))
				continue
			}
			entries = append(entries, e)
		}
		return nil
	})
	return entries, err
}

func (c *Cache) Delete(path string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(path))
	})
}

func (c *Cache) Close() error {
	c.enc.Close()
	c.dec.Close()
	return c.db.Close()
}
