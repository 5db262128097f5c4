// Package rendercache persists resolved maps: an sqlite index over
// zstd-compressed result blobs keyed by (map, z, seed, rotation). The
// cache is advisory; a miss just means the pipeline runs again.
package rendercache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"mapforge.dev/internal/gen/ident"
	"mapforge.dev/internal/gen/render"
	"mapforge.dev/internal/gen/tile"
)

type Key struct {
	Map      ident.ID
	Z        int
	Seed     int64
	Rotation tile.Rotation
}

// Entry is the stored form of one resolved map.
type Entry struct {
	Map      ident.ID                 `json:"map"`
	Z        int                      `json:"z,omitempty"`
	Seed     int64                    `json:"seed"`
	Buffer   *render.Buffer           `json:"buffer"`
	Sprites  []render.SpritePlacement `json:"sprites,omitempty"`
	Warnings []string                 `json:"warnings,omitempty"`
}

type Cache struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder

	ch   chan putReq
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type putReq struct {
	key   Key
	entry *Entry
	// done marks a flush request instead of a write.
	done chan struct{}
}

// Open creates or reuses the cache database at path. The catalog digest
// guards staleness: when it differs from the stored one, all cached
// results are purged.
func Open(path, catalogDigest string) (*Cache, error) {
	if path == "" {
		return nil, fmt.Errorf("empty cache path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := checkDigest(db, catalogDigest); err != nil {
		_ = db.Close()
		return nil, err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	c := &Cache{
		db:  db,
		enc: enc,
		dec: dec,
		ch:  make(chan putReq, 1024),
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.loop()
	}()
	return c, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-heavy write side; the cache is rebuildable so
	// NORMAL durability is enough.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS results (
			map TEXT NOT NULL,
			z INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			rotation INTEGER NOT NULL,
			blob BLOB NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (map, z, seed, rotation)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func checkDigest(db *sql.DB, digest string) error {
	var stored string
	err := db.QueryRow(`SELECT value FROM meta WHERE key = 'catalog_digest'`).Scan(&stored)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if stored == digest {
		return nil
	}
	if _, err := db.Exec(`DELETE FROM results`); err != nil {
		return err
	}
	_, err = db.Exec(`INSERT INTO meta(key, value) VALUES('catalog_digest', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, digest)
	return err
}

func (c *Cache) Close() error {
	var err error
	c.once.Do(func() {
		c.closed.Store(true)
		close(c.ch)
		c.wg.Wait()
		c.dec.Close()
		_ = c.enc.Close()
		err = c.db.Close()
	})
	return err
}

// Put queues a result for storage. Writes are dropped when the writer
// falls behind; the pipeline can always regenerate them.
func (c *Cache) Put(key Key, res *render.Result) {
	if c == nil || c.closed.Load() {
		return
	}
	entry := &Entry{
		Map:     res.Map,
		Z:       res.Z,
		Seed:    res.Seed,
		Buffer:  res.Buffer,
		Sprites: res.Sprites,
	}
	for _, w := range res.Warnings {
		entry.Warnings = append(entry.Warnings, w.String())
	}
	select {
	case c.ch <- putReq{key: key, entry: entry}:
	default:
	}
}

// Get looks a resolved map up. ok is false on a miss.
func (c *Cache) Get(key Key) (entry *Entry, ok bool, err error) {
	if c == nil || c.closed.Load() {
		return nil, false, nil
	}
	var blob []byte
	row := c.db.QueryRow(`SELECT blob FROM results WHERE map = ? AND z = ? AND seed = ? AND rotation = ?`,
		string(key.Map), key.Z, key.Seed, int(key.Rotation))
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	raw, err := c.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, false, fmt.Errorf("decompress %s/%d: %w", key.Map, key.Seed, err)
	}
	entry = &Entry{}
	if err := json.Unmarshal(raw, entry); err != nil {
		return nil, false, fmt.Errorf("decode %s/%d: %w", key.Map, key.Seed, err)
	}
	return entry, true, nil
}

func (c *Cache) loop() {
	for r := range c.ch {
		if r.done != nil {
			close(r.done)
			continue
		}
		raw, err := json.Marshal(r.entry)
		if err != nil {
			continue
		}
		blob := c.enc.EncodeAll(raw, nil)
		_, _ = c.db.Exec(`INSERT INTO results(map, z, seed, rotation, blob, created_at)
			VALUES(?, ?, ?, ?, ?, ?)
			ON CONFLICT(map, z, seed, rotation) DO UPDATE SET
				blob = excluded.blob, created_at = excluded.created_at`,
			string(r.key.Map), r.key.Z, r.key.Seed, int(r.key.Rotation), blob,
			time.Now().UTC().Format(time.RFC3339))
	}
}

// Flush blocks until every write queued before it has been applied.
// Tests and shutdown paths use it; the serving path never waits.
func (c *Cache) Flush() {
	if c == nil || c.closed.Load() {
		return
	}
	done := make(chan struct{})
	c.ch <- putReq{done: done}
	<-done
}
