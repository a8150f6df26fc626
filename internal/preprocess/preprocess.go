// Package preprocess implements the extension-keyed filter pipeline with
// an optional persistent content cache, using a gorm+sqlite content
// cache keyed on a content hash.
package preprocess

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"htdeploy/internal/pattern"
)

// Filter is one pipeline step. Implementations may be stateless closures
// (wrapped via FilterFunc) or stateful structs (e.g. a minifier holding
// its own options).
type Filter interface {
	Run(content []byte, path string) ([]byte, error)
}

// FilterFunc adapts a plain function to the Filter interface.
type FilterFunc func(content []byte, path string) ([]byte, error)

// Run implements Filter.
func (f FilterFunc) Run(content []byte, path string) ([]byte, error) { return f(content, path) }

// Step is one entry in a FilterPipeline's per-extension chain.
type Step struct {
	Filter Filter
	Cached bool
}

// FilterPipeline maps a lower-case file extension (including the leading
// dot, e.g. ".html") to its ordered filter chain.
type FilterPipeline map[string][]Step

// cacheEntry is the gorm model for the on-disk content cache.
type cacheEntry struct {
	Key        string `gorm:"primaryKey"`
	OutputPath string
}

// Preprocessor applies a FilterPipeline to files matching a set of
// preprocess patterns, writing results under tempDir and caching steps
// marked Cached in a SQLite-backed table that survives across deploys.
//
// A Preprocessor is scoped to one Deployer.Run: besides the persistent
// SQLite step cache, it also keeps an in-memory memo of relPath+content
// hash to final output path, so a non-pure or uncached filter can't hand
// back two different temp files for the same source bytes within a
// single run (the scanner and the uploader each call Process once).
type Preprocessor struct {
	tempDir  string
	patterns []string
	pipeline FilterPipeline
	db       *gorm.DB

	mu   sync.Mutex
	memo map[string]string
}

// New opens (or creates) the cache database at cacheDBPath and returns a
// Preprocessor writing temp files under tempDir.
func New(tempDir, cacheDBPath string, patterns []string, pipeline FilterPipeline) (*Preprocessor, error) {
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, err
	}
	db, err := gorm.Open(sqlite.Open(cacheDBPath), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&cacheEntry{}); err != nil {
		return nil, err
	}
	return &Preprocessor{tempDir: tempDir, patterns: patterns, pipeline: pipeline, db: db, memo: map[string]string{}}, nil
}

// eligible reports whether path (relative, POSIX form) should be run
// through the pipeline at all: it needs a registered chain for its
// extension AND to match at least one preprocess pattern.
func (p *Preprocessor) eligible(path string) ([]Step, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	steps, ok := p.pipeline[ext]
	if !ok || len(steps) == 0 {
		return nil, false
	}
	if len(p.patterns) == 0 {
		return nil, false
	}
	if !pattern.Matches(path, p.patterns, false) {
		return nil, false
	}
	return steps, true
}

// Process runs absPath (whose path-relative form is relPath, for pattern
// matching) through the filter pipeline. If there's no registered chain
// for its extension, or it matches no preprocess pattern, absPath is
// returned unchanged and no temp file is created.
func (p *Preprocessor) Process(absPath, relPath string) (string, error) {
	steps, ok := p.eligible(relPath)
	if !ok {
		return absPath, nil
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", err
	}

	runKey := p.memoKey(relPath, content)
	if out, found := p.memoLookup(runKey); found {
		return out, nil
	}

	for i, step := range steps {
		if step.Cached {
			key := cacheKey(content, i)
			if cached, found := p.lookup(key); found {
				if data, err := os.ReadFile(cached); err == nil {
					content = data
					continue
				}
			}
			out, err := step.Filter.Run(content, relPath)
			if err != nil {
				return "", err
			}
			content = out
			if err := p.store(key, content); err != nil {
				return "", err
			}
		} else {
			out, err := step.Filter.Run(content, relPath)
			if err != nil {
				return "", err
			}
			content = out
		}
	}

	outPath := filepath.Join(p.tempDir, uuid.NewString())
	if err := os.WriteFile(outPath, content, 0644); err != nil {
		return "", err
	}
	p.memoStore(runKey, outPath)
	return outPath, nil
}

// memoKey identifies one (relPath, source content) pair for the
// lifetime of this Preprocessor.
func (p *Preprocessor) memoKey(relPath string, content []byte) string {
	h := xxhash.New()
	h.Write(content)
	return relPath + "#" + strconv.FormatUint(h.Sum64(), 16)
}

func (p *Preprocessor) memoLookup(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out, found := p.memo[key]
	if !found {
		return "", false
	}
	if _, err := os.Stat(out); err != nil {
		delete(p.memo, key)
		return "", false
	}
	return out, true
}

func (p *Preprocessor) memoStore(key, outPath string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.memo[key] = outPath
}

// cacheKey computes the xxhash of content concatenated with the step
// index, so two unrelated inputs reaching the same pipeline step with
// byte-identical intermediate content correctly share a cache entry.
func cacheKey(content []byte, stepIndex int) string {
	h := xxhash.New()
	h.Write(content)
	h.Write([]byte(":" + strconv.Itoa(stepIndex)))
	return strconv.FormatUint(h.Sum64(), 16)
}

func (p *Preprocessor) lookup(key string) (string, bool) {
	var entry cacheEntry
	result := p.db.First(&entry, "key = ?", key)
	if result.Error != nil {
		return "", false
	}
	if _, err := os.Stat(entry.OutputPath); err != nil {
		return "", false
	}
	return entry.OutputPath, true
}

func (p *Preprocessor) store(key string, content []byte) error {
	outPath := filepath.Join(p.tempDir, "cache-"+key)
	if err := os.WriteFile(outPath, content, 0644); err != nil {
		return err
	}
	entry := cacheEntry{Key: key, OutputPath: outPath}
	return p.db.Save(&entry).Error
}

// Close releases the underlying database handle.
func (p *Preprocessor) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
