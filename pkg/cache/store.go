package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/aigenflow/pipeline/pkg/logging"
)

// Store is a filesystem-backed, content-addressed cache of serialized
// provider responses. Layout under Root:
//
//	responses/<key>.json - one Entry per file
//	stats.json           - aggregate counters
//
// Writes are atomic (write-temp-then-rename); a malformed or expired entry
// is quarantined (deleted) on next access rather than surfaced to callers.
type Store struct {
	Root       string
	ByteBudget int64

	mu     sync.Mutex
	logger logging.Logger

	hits   int64
	misses int64
}

// NewStore returns a Store rooted at root with the given eviction byte
// budget. The responses/ subdirectory is created lazily on first write.
func NewStore(root string, byteBudget int64, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NoOp()
	}
	return &Store{Root: root, ByteBudget: byteBudget, logger: logger}
}

func (s *Store) responsesDir() string { return filepath.Join(s.Root, "responses") }
func (s *Store) entryPath(key string) string {
	return filepath.Join(s.responsesDir(), key+".json")
}
func (s *Store) statsPath() string { return filepath.Join(s.Root, "stats.json") }

// Save writes a fresh entry for key, then runs LRU eviction until the store
// is back under budget.
func (s *Store) Save(key string, payload []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.responsesDir(), 0o755); err != nil {
		return err
	}

	now := time.Now()
	entry := Entry{
		Key:          key,
		Payload:      payload,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		AccessCount:  0,
		LastAccessed: now,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	entry.SizeBytes = len(data)
	// re-marshal with the size recorded, matching "size is measured from
	// the serialized entry"
	data, err = json.Marshal(entry)
	if err != nil {
		return err
	}

	if err := s.atomicWrite(s.entryPath(key), data); err != nil {
		s.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
		return err
	}

	s.evictLocked()
	s.persistStatsLocked()
	return nil
}

// Get returns the payload for key, or (nil, false) on miss (missing,
// malformed, or expired).
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.readEntry(key)
	if !ok {
		s.misses++
		s.persistStatsLocked()
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		_ = os.Remove(s.entryPath(key))
		s.misses++
		s.persistStatsLocked()
		return nil, false
	}

	entry.AccessCount++
	entry.LastAccessed = time.Now()
	if data, err := json.Marshal(entry); err == nil {
		entry.SizeBytes = len(data)
		if data2, err2 := json.Marshal(entry); err2 == nil {
			_ = s.atomicWrite(s.entryPath(key), data2)
		}
	}

	s.hits++
	s.persistStatsLocked()
	return entry.Payload, true
}

// Delete removes key's entry.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = os.Remove(s.entryPath(key))
	s.persistStatsLocked()
}

// Clear removes every entry and resets counters.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = os.RemoveAll(s.responsesDir())
	_ = os.MkdirAll(s.responsesDir(), 0o755)
	s.hits = 0
	s.misses = 0
	s.persistStatsLocked()
}

// List enumerates every non-expired entry, ordered by LastAccessed (falling
// back to CreatedAt) descending.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.listAllLocked(true)
	sort.Slice(entries, func(i, j int) bool {
		return s.recency(entries[i]).After(s.recency(entries[j]))
	})
	return entries
}

func (s *Store) recency(e Entry) time.Time {
	if !e.LastAccessed.IsZero() {
		return e.LastAccessed
	}
	return e.CreatedAt
}

// Stats recomputes counts and byte totals by listing, then returns the
// aggregate view.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

// statsLocked computes the current aggregate view. Caller must hold s.mu.
func (s *Store) statsLocked() Stats {
	entries := s.listAllLocked(true)
	var total int64
	for _, e := range entries {
		total += int64(e.SizeBytes)
	}

	stats := Stats{
		TotalEntries:   len(entries),
		TotalSizeBytes: total,
		HitCount:       s.hits,
		MissCount:      s.misses,
	}
	if s.hits+s.misses > 0 {
		stats.HitRate = float64(s.hits) / float64(s.hits+s.misses)
	}
	return stats
}

// persistStatsLocked writes the current aggregate view to statsPath(),
// matching the on-disk stats.json format the original cache implementation
// maintains after every save, hit, miss and delete. Caller must hold s.mu.
func (s *Store) persistStatsLocked() {
	data, err := json.Marshal(s.statsLocked())
	if err != nil {
		return
	}
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		s.logger.Warn("cache stats directory create failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := s.atomicWrite(s.statsPath(), data); err != nil {
		s.logger.Warn("cache stats write failed", map[string]interface{}{"error": err.Error()})
	}
}

// listAllLocked reads every entry file, skipping (and optionally deleting)
// expired or corrupt ones. Caller must hold s.mu.
func (s *Store) listAllLocked(quarantineExpired bool) []Entry {
	files, err := os.ReadDir(s.responsesDir())
	if err != nil {
		return nil
	}
	var out []Entry
	now := time.Now()
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		key := trimJSONExt(f.Name())
		entry, ok := s.readEntry(key)
		if !ok {
			continue
		}
		if quarantineExpired && now.After(entry.ExpiresAt) {
			_ = os.Remove(s.entryPath(key))
			continue
		}
		out = append(out, entry)
	}
	return out
}

func (s *Store) readEntry(key string) (Entry, bool) {
	data, err := os.ReadFile(s.entryPath(key))
	if err != nil {
		return Entry{}, false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		_ = os.Remove(s.entryPath(key))
		return Entry{}, false
	}
	return entry, true
}

// evictLocked repeatedly deletes the least-recently-accessed entry (tie
// break: oldest CreatedAt) while the store is over budget. Caller holds s.mu.
func (s *Store) evictLocked() {
	if s.ByteBudget <= 0 {
		return
	}
	for {
		entries := s.listAllLocked(false)
		var total int64
		for _, e := range entries {
			total += int64(e.SizeBytes)
		}
		if total <= s.ByteBudget || len(entries) == 0 {
			return
		}

		sort.Slice(entries, func(i, j int) bool {
			ri, rj := s.recency(entries[i]), s.recency(entries[j])
			if !ri.Equal(rj) {
				return ri.Before(rj)
			}
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		})
		oldest := entries[0]
		_ = os.Remove(s.entryPath(oldest.Key))
	}
}

func (s *Store) atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func trimJSONExt(name string) string {
	const ext = ".json"
	if len(name) > len(ext) && name[len(name)-len(ext):] == ext {
		return name[:len(name)-len(ext)]
	}
	return name
}
