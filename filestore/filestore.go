// Package filestore implements the persistent tier: a sharded directory
// of envelope files with an in-memory index.
//
// Layout is <dir>/<ss>/<hash>.json where <ss> is the two-hex-char shard
// index and <hash> the 32-hex key digest. Writes are atomic (unique temp
// file in the root, then rename). The index is rebuilt from a directory
// scan on first use, so the store survives restarts as long as the hash
// and shard settings are unchanged.
//
// The store reports evictions and self-heals through upcalls instead of
// logging: the owner decides what they mean. Upcall panics are recovered
// so they can never fail the operation that triggered them.
package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/strata/compress"
	"github.com/unkn0wn-root/strata/internal/glob"
	"github.com/unkn0wn-root/strata/internal/keyhash"
	"github.com/unkn0wn-root/strata/internal/wire"
)

// Entry is a decoded disk record.
type Entry struct {
	Key       string
	Value     []byte
	ExpiresAt int64 // unix ms; 0 = no expiry
}

type indexEntry struct {
	hash           string
	expiresAt      int64
	lastAccessedAt int64
	size           int64 // on-disk bytes after compression
}

// Config configures a Store. Zero-value callbacks are no-ops. Hash
// defaults to keyhash.Sum and exists so tests can force collisions.
type Config struct {
	Dir        string
	Shards     int
	MaxBytes   int64 // disk byte bound; <= 0 disables eviction
	Compressor compress.Compressor
	Hash       func(key string) string
	OnEvict    func(key string)              // entry removed to make room or by hash collision
	OnHeal     func(key string, reason string) // entry dropped after a failed read
}

// Store is safe for concurrent use. Index state is guarded by mu; file
// I/O happens outside the lock. Initialization is lazy: the first
// operation creates the directory tree and rebuilds the index, and a
// failure there is returned by every subsequent operation.
type Store struct {
	dir      string
	shards   int
	maxBytes int64
	comp     compress.Compressor
	hash     func(string) string
	onEvict  func(string)
	onHeal   func(string, string)

	initOnce sync.Once
	initErr  error

	mu        sync.Mutex
	index     map[string]indexEntry
	hashToKey map[string]string
	totalSize int64
}

func New(cfg Config) *Store {
	if cfg.Shards < 1 {
		cfg.Shards = 1
	}
	if cfg.Compressor == nil {
		cfg.Compressor = compress.None{}
	}
	if cfg.Hash == nil {
		cfg.Hash = keyhash.Sum
	}
	return &Store{
		dir:       cfg.Dir,
		shards:    cfg.Shards,
		maxBytes:  cfg.MaxBytes,
		comp:      cfg.Compressor,
		hash:      cfg.Hash,
		onEvict:   cfg.OnEvict,
		onHeal:    cfg.OnHeal,
		index:     make(map[string]indexEntry),
		hashToKey: make(map[string]string),
	}
}

func isExpired(expiresAt, now int64) bool { return expiresAt > 0 && now >= expiresAt }

func nowMS() int64 { return time.Now().UnixMilli() }

func (s *Store) pathFor(hash string) string {
	shard := keyhash.Dir(keyhash.Shard(hash, s.shards))
	return filepath.Join(s.dir, shard, hash+".json")
}

func (s *Store) init() error {
	s.initOnce.Do(func() { s.initErr = s.load() })
	return s.initErr
}

// load creates the directory tree, sweeps stale temp files, and rebuilds
// the index from the shard contents. Expired files are deleted; files
// that cannot be read or decoded are skipped and left in place.
func (s *Store) load() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("strata: create cache dir: %w", err)
	}
	for i := 0; i < s.shards; i++ {
		if err := os.MkdirAll(filepath.Join(s.dir, keyhash.Dir(i)), 0o755); err != nil {
			return fmt.Errorf("strata: create shard dir: %w", err)
		}
	}
	if root, err := os.ReadDir(s.dir); err == nil {
		for _, de := range root {
			if !de.IsDir() && strings.HasPrefix(de.Name(), ".tmp-") {
				_ = os.Remove(filepath.Join(s.dir, de.Name()))
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := nowMS()
	for i := 0; i < s.shards; i++ {
		shardDir := filepath.Join(s.dir, keyhash.Dir(i))
		files, err := os.ReadDir(shardDir)
		if err != nil {
			return fmt.Errorf("strata: scan shard dir: %w", err)
		}
		for _, de := range files {
			name := de.Name()
			if de.IsDir() || !strings.HasSuffix(name, ".json") {
				continue
			}
			path := filepath.Join(shardDir, name)
			fi, err := de.Info()
			if err != nil {
				continue
			}
			env, err := s.read(path)
			if err != nil {
				continue
			}
			exp := wire.Expiry(env.ExpiresAt)
			if isExpired(exp, now) {
				_ = os.Remove(path)
				continue
			}
			if old, ok := s.index[env.Key]; ok {
				s.totalSize -= old.size
				delete(s.hashToKey, old.hash)
			}
			h := strings.TrimSuffix(name, ".json")
			s.index[env.Key] = indexEntry{
				hash:           h,
				expiresAt:      exp,
				lastAccessedAt: fi.ModTime().UnixMilli(),
				size:           fi.Size(),
			}
			s.hashToKey[h] = env.Key
			s.totalSize += fi.Size()
		}
	}
	return nil
}

// read loads and decodes one envelope file. The configured compressor
// runs first; compress.Detect then undoes any transform the file was
// written with under an earlier configuration.
func (s *Store) read(path string) (wire.Envelope, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return wire.Envelope{}, err
	}
	dec, err := s.comp.Decode(raw)
	if err != nil {
		return wire.Envelope{}, err
	}
	plain, err := compress.Detect(dec)
	if err != nil {
		return wire.Envelope{}, err
	}
	return wire.Decode(plain)
}

// Get returns the live entry for key and refreshes its index access
// time. Expired entries are dropped along with their file. A file that
// fails to read or decodes to a different key is treated as lost: the
// index is corrected, OnHeal fires, and the result is a miss.
func (s *Store) Get(key string) (Entry, bool, error) {
	return s.get(key, true)
}

// Peek is Get without the access-time refresh.
func (s *Store) Peek(key string) (Entry, bool, error) {
	return s.get(key, false)
}

func (s *Store) get(key string, touch bool) (Entry, bool, error) {
	if err := s.init(); err != nil {
		return Entry{}, false, err
	}
	s.mu.Lock()
	ie, ok := s.index[key]
	if !ok {
		s.mu.Unlock()
		return Entry{}, false, nil
	}
	now := nowMS()
	path := s.pathFor(ie.hash)
	if isExpired(ie.expiresAt, now) {
		s.dropLocked(key, ie)
		s.mu.Unlock()
		_ = os.Remove(path)
		return Entry{}, false, nil
	}
	s.mu.Unlock()

	env, err := s.read(path)
	if err != nil {
		s.dropIfUnchanged(key, ie)
		s.notifyHeal(key, "corrupt")
		return Entry{}, false, nil
	}
	if env.Key != key {
		s.dropIfUnchanged(key, ie)
		s.notifyHeal(key, "stale_hash")
		return Entry{}, false, nil
	}
	if touch {
		s.mu.Lock()
		if cur, ok := s.index[key]; ok && cur.hash == ie.hash {
			cur.lastAccessedAt = now
			s.index[key] = cur
		}
		s.mu.Unlock()
	}
	return Entry{Key: env.Key, Value: env.Value, ExpiresAt: wire.Expiry(env.ExpiresAt)}, true, nil
}

// Set writes the envelope for key atomically and updates the index.
// value is the codec output for the user value. A different live key
// occupying the same hash is evicted first (with upcall); its file is
// not unlinked because the new write replaces it. A failed write leaves
// the entry absent from the index with consistent accounting.
func (s *Store) Set(key string, value []byte, expiresAt int64) error {
	if err := s.init(); err != nil {
		return err
	}
	plain, err := wire.Encode(wire.Envelope{Key: key, Value: value, ExpiresAt: wire.At(expiresAt)})
	if err != nil {
		return err
	}
	raw, err := s.comp.Encode(plain)
	if err != nil {
		return fmt.Errorf("strata: compress: %w", err)
	}
	h := s.hash(key)
	path := s.pathFor(h)
	size := int64(len(raw))

	s.mu.Lock()
	if old, ok := s.index[key]; ok {
		s.dropLocked(key, old)
	}
	var evictedKeys []string
	if owner, ok := s.hashToKey[h]; ok && owner != key {
		if old, ok2 := s.index[owner]; ok2 {
			s.dropLocked(owner, old)
		} else {
			delete(s.hashToKey, h)
		}
		evictedKeys = append(evictedKeys, owner)
	}
	victims := s.ensureSpaceLocked(size)
	s.mu.Unlock()

	for _, k := range evictedKeys {
		s.notifyEvict(k)
	}
	for _, v := range victims {
		s.notifyEvict(v.key)
		_ = os.Remove(v.path)
	}

	if err := s.writeAtomic(path, raw); err != nil {
		return err
	}

	s.mu.Lock()
	s.index[key] = indexEntry{hash: h, expiresAt: expiresAt, lastAccessedAt: nowMS(), size: size}
	s.hashToKey[h] = key
	s.totalSize += size
	s.mu.Unlock()
	return nil
}

// Delete removes key from the index first, then unlinks its file.
// Reports whether the key was indexed, expired or not.
func (s *Store) Delete(key string) (bool, error) {
	if err := s.init(); err != nil {
		return false, err
	}
	s.mu.Lock()
	ie, ok := s.index[key]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	s.dropLocked(key, ie)
	path := s.pathFor(ie.hash)
	s.mu.Unlock()
	_ = os.Remove(path)
	return true, nil
}

// Has reports whether key is indexed and live. An expired entry is
// dropped together with its file.
func (s *Store) Has(key string) (bool, error) {
	if err := s.init(); err != nil {
		return false, err
	}
	s.mu.Lock()
	ie, ok := s.index[key]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	if isExpired(ie.expiresAt, nowMS()) {
		s.dropLocked(key, ie)
		path := s.pathFor(ie.hash)
		s.mu.Unlock()
		_ = os.Remove(path)
		return false, nil
	}
	s.mu.Unlock()
	return true, nil
}

// Keys returns the live keys matching m, in no particular order.
// Expired entries found during the scan are dropped and their files
// unlinked in parallel before Keys returns.
func (s *Store) Keys(m *glob.Matcher) ([]string, error) {
	if err := s.init(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	now := nowMS()
	var live []string
	var deadPaths []string
	for k, ie := range s.index {
		if isExpired(ie.expiresAt, now) {
			deadPaths = append(deadPaths, s.pathFor(ie.hash))
			s.dropLocked(k, ie)
			continue
		}
		if m.Match(k) {
			live = append(live, k)
		}
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range deadPaths {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			_ = os.Remove(p)
		}(p)
	}
	wg.Wait()
	return live, nil
}

// SetExpiry rewrites the envelope for a live key with a new expiry
// (0 = none) and updates the index, including the size, which changes
// with the re-encoded file. Returns false when key is missing, expired,
// or its file turned out to be unreadable.
func (s *Store) SetExpiry(key string, expiresAt int64) (bool, error) {
	if err := s.init(); err != nil {
		return false, err
	}
	s.mu.Lock()
	ie, ok := s.index[key]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	path := s.pathFor(ie.hash)
	if isExpired(ie.expiresAt, nowMS()) {
		s.dropLocked(key, ie)
		s.mu.Unlock()
		_ = os.Remove(path)
		return false, nil
	}
	s.mu.Unlock()

	env, err := s.read(path)
	if err != nil {
		s.dropIfUnchanged(key, ie)
		s.notifyHeal(key, "corrupt")
		return false, nil
	}
	if env.Key != key {
		s.dropIfUnchanged(key, ie)
		s.notifyHeal(key, "stale_hash")
		return false, nil
	}
	env.ExpiresAt = wire.At(expiresAt)
	plain, err := wire.Encode(env)
	if err != nil {
		return false, err
	}
	raw, err := s.comp.Encode(plain)
	if err != nil {
		return false, fmt.Errorf("strata: compress: %w", err)
	}
	if err := s.writeAtomic(path, raw); err != nil {
		return false, err
	}

	s.mu.Lock()
	if cur, ok := s.index[key]; ok && cur.hash == ie.hash {
		s.totalSize += int64(len(raw)) - cur.size
		cur.size = int64(len(raw))
		cur.expiresAt = expiresAt
		s.index[key] = cur
	}
	s.mu.Unlock()
	return true, nil
}

// Touch refreshes the index access time of a live key and best-effort
// updates the file mtime so the refresh survives a restart.
func (s *Store) Touch(key string) (bool, error) {
	if err := s.init(); err != nil {
		return false, err
	}
	s.mu.Lock()
	ie, ok := s.index[key]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	path := s.pathFor(ie.hash)
	if isExpired(ie.expiresAt, nowMS()) {
		s.dropLocked(key, ie)
		s.mu.Unlock()
		_ = os.Remove(path)
		return false, nil
	}
	ie.lastAccessedAt = nowMS()
	s.index[key] = ie
	s.mu.Unlock()

	now := time.Now()
	_ = os.Chtimes(path, now, now)
	return true, nil
}

// ExpiresAt returns the expiry of a live key (0 = no expiry) from the
// index alone; no file I/O. Expired entries are reported missing and
// left for Prune.
func (s *Store) ExpiresAt(key string) (int64, bool, error) {
	if err := s.init(); err != nil {
		return 0, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ie, ok := s.index[key]
	if !ok || isExpired(ie.expiresAt, nowMS()) {
		return 0, false, nil
	}
	return ie.expiresAt, true, nil
}

// Prune drops every expired entry and unlinks their files in parallel.
// Returns the number of entries removed.
func (s *Store) Prune() (int, error) {
	if err := s.init(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	now := nowMS()
	var paths []string
	for k, ie := range s.index {
		if isExpired(ie.expiresAt, now) {
			paths = append(paths, s.pathFor(ie.hash))
			s.dropLocked(k, ie)
		}
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range paths {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			_ = os.Remove(p)
		}(p)
	}
	wg.Wait()
	return len(paths), nil
}

// Clear resets the index and deletes all shard contents in parallel.
func (s *Store) Clear() error {
	if err := s.init(); err != nil {
		return err
	}
	s.mu.Lock()
	s.index = make(map[string]indexEntry)
	s.hashToKey = make(map[string]string)
	s.totalSize = 0
	s.mu.Unlock()

	var g errgroup.Group
	for i := 0; i < s.shards; i++ {
		shardDir := filepath.Join(s.dir, keyhash.Dir(i))
		g.Go(func() error {
			files, err := os.ReadDir(shardDir)
			if err != nil {
				return fmt.Errorf("strata: clear shard: %w", err)
			}
			for _, de := range files {
				if err := os.Remove(filepath.Join(shardDir, de.Name())); err != nil {
					return fmt.Errorf("strata: clear shard: %w", err)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// Len returns the number of indexed entries, initializing if needed.
func (s *Store) Len() (int, error) {
	if err := s.init(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index), nil
}

// Size returns the total on-disk bytes of indexed entries.
func (s *Store) Size() (int64, error) {
	if err := s.init(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalSize, nil
}

// Counts is Len+Size for stats snapshots: it never triggers the lazy
// directory scan, so reading stats stays free of I/O.
func (s *Store) Counts() (items int, bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index), s.totalSize
}

type victim struct {
	key  string
	path string
}

// ensureSpaceLocked frees room for needed bytes. Phase A evicts expired
// entries; Phase B evicts the coldest by last access until the overshoot
// is covered. Victim files are unlinked by the caller after the lock is
// released.
func (s *Store) ensureSpaceLocked(needed int64) []victim {
	if s.maxBytes <= 0 || s.totalSize+needed <= s.maxBytes {
		return nil
	}
	target := s.totalSize + needed - s.maxBytes
	var freed int64
	var out []victim

	now := nowMS()
	for k, ie := range s.index {
		if freed >= target {
			break
		}
		if isExpired(ie.expiresAt, now) {
			freed += ie.size
			out = append(out, victim{key: k, path: s.pathFor(ie.hash)})
			s.dropLocked(k, ie)
		}
	}
	for freed < target && len(s.index) > 0 {
		first := true
		var coldKey string
		var cold indexEntry
		for k, ie := range s.index {
			if first || ie.lastAccessedAt < cold.lastAccessedAt {
				coldKey, cold, first = k, ie, false
			}
		}
		freed += cold.size
		out = append(out, victim{key: coldKey, path: s.pathFor(cold.hash)})
		s.dropLocked(coldKey, cold)
	}
	return out
}

func (s *Store) dropLocked(key string, ie indexEntry) {
	delete(s.index, key)
	if s.hashToKey[ie.hash] == key {
		delete(s.hashToKey, ie.hash)
	}
	s.totalSize -= ie.size
}

// dropIfUnchanged removes key only if the index still holds the entry
// the caller observed, so a concurrent overwrite is never discarded.
func (s *Store) dropIfUnchanged(key string, ie indexEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.index[key]; ok && cur.hash == ie.hash && cur.size == ie.size && cur.expiresAt == ie.expiresAt {
		s.dropLocked(key, cur)
	}
}

func (s *Store) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("strata: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("strata: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("strata: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("strata: rename: %w", err)
	}
	return nil
}

func (s *Store) notifyEvict(key string) {
	if s.onEvict == nil {
		return
	}
	defer func() { _ = recover() }()
	s.onEvict(key)
}

func (s *Store) notifyHeal(key, reason string) {
	if s.onHeal == nil {
		return
	}
	defer func() { _ = recover() }()
	s.onHeal(key, reason)
}
