package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/malscan/malscan/internal/catalog"
	"github.com/malscan/malscan/internal/correlate"
	"github.com/malscan/malscan/internal/detect"
	"github.com/malscan/malscan/internal/ignore"
	"github.com/malscan/malscan/internal/semantic"
	"github.com/malscan/malscan/internal/types"
)

// ErrTargetNotFound is returned when the scan root does not exist. It is the
// one fatal input error: everything else degrades per file.
var ErrTargetNotFound = errors.New("scan target not found")

// Config controls scan scope, performance and filters.
type Config struct {
	Root            string
	IncludeGlobs    string
	ExcludeGlobs    string
	MaxBytes        int64
	Threads         int
	DefaultExcludes bool
	NoCache         bool
	Progress        func()
	Logger          hclog.Logger
}

// Result contains the final findings and basic scan statistics.
type Result struct {
	Findings     []types.Finding
	FilesScanned int
	CacheHits    int
	Duration     time.Duration
}

// Scan runs a full scan and returns only the findings.
func Scan(cat *catalog.Catalog, cfg Config) ([]types.Finding, error) {
	res, err := ScanWithStats(cat, cfg)
	if err != nil {
		return nil, err
	}
	return res.Findings, nil
}

// ScanWithStats runs the three-stage pipeline: pattern detection across every
// file, then semantic enhancement per file, then one correlation pass over the
// complete set. Each stage finishes for all files before the next starts, and
// findings are re-sorted at every boundary so the output never depends on
// goroutine scheduling.
func ScanWithStats(cat *catalog.Catalog, cfg Config) (Result, error) {
	var result Result

	log := cfg.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}
	st, err := os.Stat(cfg.Root)
	if err != nil {
		return result, fmt.Errorf("%w: %s", ErrTargetNotFound, cfg.Root)
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = detect.DefaultMaxFileBytes
	}
	if cfg.Threads <= 0 {
		cfg.Threads = runtime.GOMAXPROCS(0)
	}
	started := time.Now()

	// snapshot every eligible file up front; all three stages index into the
	// same content, so line numbers stay consistent even if files change on
	// disk mid-scan
	files := map[string][]byte{}
	if st.IsDir() {
		ign, _ := ignore.Load(filepath.Join(cfg.Root, ".malscanignore"))
		err := Walk(cfg, ign, func(p string, b []byte) {
			files[p] = b
			if cfg.Progress != nil {
				cfg.Progress()
			}
		})
		if err != nil {
			return result, err
		}
	} else {
		b, err := os.ReadFile(cfg.Root)
		if err != nil {
			return result, fmt.Errorf("read %s: %w", cfg.Root, err)
		}
		if int64(len(b)) <= cfg.MaxBytes && !looksBinary(b) {
			files[filepath.Base(cfg.Root)] = b
		}
		// single-file scans have no sensible cache root
		cfg.NoCache = true
	}
	result.FilesScanned = len(files)

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	db := cacheDB{Entries: map[string]cacheEntry{}}
	if !cfg.NoCache {
		db = loadCache(cfg.Root)
	}

	// stage 1: detector, parallel across files, index-addressed results
	det := detect.New(cat, log)
	det.SetMaxBytes(cfg.MaxBytes)
	detected := make([][]types.Finding, len(paths))
	hashes := make([]string, len(paths))
	hit := make([]bool, len(paths))
	runParallel(cfg.Threads, len(paths), func(i int) {
		p := paths[i]
		hashes[i] = fastHash(files[p])
		if e, ok := db.Entries[p]; ok && e.Hash == hashes[i] {
			detected[i] = e.Findings
			hit[i] = true
			return
		}
		detected[i] = det.ScanFile(p, files[p])
	})
	var merged []types.Finding
	for i := range detected {
		merged = append(merged, detected[i]...)
		if hit[i] {
			result.CacheHits++
		}
	}
	sortFindings(merged)

	// stage 2: enhancer, parallel per file with findings; starts only after
	// every file has been detected
	enh := semantic.NewEnhancer(cat.Classifiers, log)
	byFile := map[string][]types.Finding{}
	for _, f := range merged {
		byFile[f.Path] = append(byFile[f.Path], f)
	}
	fpaths := make([]string, 0, len(byFile))
	for p := range byFile {
		fpaths = append(fpaths, p)
	}
	sort.Strings(fpaths)
	enhanced := make([][]types.Finding, len(fpaths))
	runParallel(cfg.Threads, len(fpaths), func(i int) {
		p := fpaths[i]
		enhanced[i] = enh.EnhanceFile(p, files[p], byFile[p])
	})
	var all []types.Finding
	for i := range enhanced {
		all = append(all, enhanced[i]...)
	}
	sortFindings(all)

	// stage 3: correlator, exactly once over the complete enhanced set
	graph := correlate.BuildGraph(files)
	corr := correlate.New(cat.Classifiers, log)
	result.Findings = corr.Run(all, graph)
	result.Duration = time.Since(started)

	if !cfg.NoCache {
		// rebuild from the current tree so stale paths fall out
		fresh := cacheDB{Entries: make(map[string]cacheEntry, len(paths))}
		for i, p := range paths {
			fresh.Entries[p] = cacheEntry{Hash: hashes[i], Findings: detected[i]}
		}
		if err := saveCache(cfg.Root, fresh); err != nil {
			log.Debug("cache save failed", "error", err)
		}
	}
	return result, nil
}

// sortFindings orders findings by (path, line, category, matcher), the merge
// order every stage boundary relies on.
func sortFindings(fs []types.Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Matcher < b.Matcher
	})
}

func runParallel(workers, n int, fn func(int)) {
	if n == 0 {
		return
	}
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}
