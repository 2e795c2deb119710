package engine

import (
	"encoding/json"
	"os"
	"path/filepath"

	xxhash "github.com/cespare/xxhash/v2"

	"github.com/malscan/malscan/internal/types"
)

// cacheEntry stores one file's detector-stage findings keyed by content hash.
// Only the detector stage is cached: enhancement reads the file's current
// syntax and correlation reads the whole tree, so both always re-run.
type cacheEntry struct {
	Hash     string          `json:"hash"`
	Findings []types.Finding `json:"findings,omitempty"`
}

type cacheDB struct {
	Entries map[string]cacheEntry `json:"entries"`
}

func cachePath(root string) string {
	// prefer .git so the cache never gets committed
	gitDir := filepath.Join(root, ".git")
	if st, err := os.Stat(gitDir); err == nil && st.IsDir() {
		return filepath.Join(gitDir, "malscan-cache.json")
	}
	return filepath.Join(root, ".malscan-cache.json")
}

func loadCache(root string) cacheDB {
	db := cacheDB{Entries: map[string]cacheEntry{}}
	b, err := os.ReadFile(cachePath(root))
	if err != nil {
		return db
	}
	if err := json.Unmarshal(b, &db); err != nil || db.Entries == nil {
		db.Entries = map[string]cacheEntry{}
	}
	return db
}

func saveCache(root string, db cacheDB) error {
	b, _ := json.MarshalIndent(db, "", "  ")
	return os.WriteFile(cachePath(root), b, 0o644)
}

func fastHash(b []byte) string {
	if len(b) == 0 {
		return "0000000000000000"
	}
	sum := xxhash.Sum64(b)
	var buf [16]byte
	const hex = "0123456789abcdef"
	for i := 15; i >= 0; i-- {
		buf[i] = hex[sum&0xF]
		sum >>= 4
	}
	return string(buf[:])
}
