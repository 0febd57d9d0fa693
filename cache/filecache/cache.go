// Package filecache implements a read-through cache of files contents. Entries are keyed by
// absolute paths and invalidated as soon as the file on disk changes its modification time.
package filecache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lingdar-web/lingdar/cache/lru"
	"github.com/lingdar-web/lingdar/config"
	"github.com/lingdar-web/lingdar/internal/metrics"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound     = errors.New("file not found")
	ErrAccessDenied = errors.New("file is outside of allowed directories")
)

type Entry struct {
	Path    string
	Content []byte
	ModTime time.Time
}

type Info struct {
	// Hits are requests served without touching the disk, Reads are the opposite.
	Hits, Reads int
	Entries     int
	Bytes       int64
	// Idle is what's left of the lifetime.
	Idle time.Duration
}

type Cache struct {
	cfg     config.FileCache
	budget  int64
	log     logrus.FieldLogger
	metrics *metrics.Metrics

	mu      sync.Mutex
	dirs    []string
	entries *lru.Cache[string, Entry]
	bytes   int64
	idle    time.Duration
	// touched is set by hits and reads since the last sweep.
	touched bool
	info    Info

	stop   chan struct{}
	wg     sync.WaitGroup
	closed sync.Once
}

// New returns a cache with no allowed directories, so every request is denied until
// Dirs or Allow is called.
func New(cfg config.FileCache, log logrus.FieldLogger) *Cache {
	if log == nil {
		log = logrus.StandardLogger()
	}

	c := &Cache{
		cfg:     cfg,
		budget:  int64(cfg.MaxMemoryMB * 1024 * 1024),
		log:     log.WithField("component", "filecache"),
		entries: lru.New[string, Entry](0),
		idle:    cfg.Lifetime,
		stop:    make(chan struct{}),
	}

	if cfg.CheckInterval > 0 {
		c.wg.Add(1)
		go c.sweeper(cfg.CheckInterval)
	}

	return c
}

// SetMetrics attaches the collectors. Must be called before the cache is used.
func (c *Cache) SetMetrics(m *metrics.Metrics) *Cache {
	c.metrics = m
	return c
}

// Dirs replaces the allow-list.
func (c *Cache) Dirs(dirs ...string) *Cache {
	c.mu.Lock()
	c.dirs = c.dirs[:0]
	c.mu.Unlock()

	for _, dir := range dirs {
		c.Allow(dir)
	}

	return c
}

// Allow appends the directory to the allow-list. Files in nested directories are
// allowed too.
func (c *Cache) Allow(dir string) *Cache {
	abs, err := filepath.Abs(dir)
	if err != nil {
		c.log.WithError(err).WithField("dir", dir).Warn("cannot resolve directory, ignoring")
		return c
	}

	c.mu.Lock()
	c.dirs = append(c.dirs, abs)
	c.mu.Unlock()

	return c
}

func (c *Cache) allowed(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, dir := range c.dirs {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}

	return false
}

// RequestFile writes the file contents into the sink and returns its modification time.
// Cached contents are used if the known version is zero or matches the cached one at
// millisecond precision. Otherwise, the file is read from the disk and cached.
func (c *Cache) RequestFile(path string, sink io.Writer, known time.Time) (time.Time, error) {
	abs, err := filepath.Abs(path)
	if err != nil || !c.allowed(abs) {
		return time.Time{}, ErrAccessDenied
	}

	c.mu.Lock()
	entry, found := c.entries.Get(abs)
	if found && (known.IsZero() || known.UnixMilli() == entry.ModTime.UnixMilli()) {
		c.info.Hits++
		c.idle = c.cfg.Lifetime
		c.touched = true
		c.mu.Unlock()
		c.metrics.Hit(metrics.FileCache)

		_, err = sink.Write(entry.Content)
		return entry.ModTime, err
	}
	c.mu.Unlock()
	c.metrics.Miss(metrics.FileCache)

	entry, err = readEntry(abs)
	if err != nil {
		return time.Time{}, err
	}

	c.mu.Lock()
	if prev, ok := c.entries.Peek(abs); ok {
		c.bytes -= int64(len(prev.Content))
	}
	c.entries.Set(abs, entry)
	c.bytes += int64(len(entry.Content))
	c.info.Reads++
	c.idle = c.cfg.Lifetime
	c.touched = true
	c.mu.Unlock()

	_, err = sink.Write(entry.Content)
	return entry.ModTime, err
}

func readEntry(path string) (Entry, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, err)
	}

	if stat.IsDir() {
		return Entry{}, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, err)
	}

	return Entry{
		Path:    path,
		Content: content,
		ModTime: stat.ModTime(),
	}, nil
}

// GetCache returns the cached entry without touching either the disk or the recency.
func (c *Cache) GetCache(path string) (Entry, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Entry{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.entries.Peek(abs)
}

// Sweep evicts the least recent entries while the cache is over its memory budget, drops
// entries whose files were modified or removed, and winds the idle counter down unless
// the cache was used since the previous sweep. Once it's
// exhausted, the cache is cleared entirely.
func (c *Cache) Sweep() {
	var evicted int

	c.mu.Lock()
	for c.bytes > c.budget {
		entry, ok := c.entries.Pop()
		if !ok {
			break
		}

		c.bytes -= int64(len(entry.Value.Content))
		evicted++
	}

	snapshot := make([]Entry, 0, c.entries.Size())
	for _, entry := range c.entries.All() {
		snapshot = append(snapshot, Entry{Path: entry.Path, ModTime: entry.ModTime})
	}
	c.mu.Unlock()

	for _, entry := range snapshot {
		stat, err := os.Stat(entry.Path)
		if err == nil && stat.ModTime().Equal(entry.ModTime) {
			continue
		}

		c.mu.Lock()
		if current, ok := c.entries.Peek(entry.Path); ok {
			c.bytes -= int64(len(current.Content))
			c.entries.Remove(entry.Path)
			evicted++
		}
		c.mu.Unlock()
	}

	c.mu.Lock()
	if c.touched {
		c.idle, c.touched = c.cfg.Lifetime, false
	} else {
		c.idle -= c.cfg.CheckInterval
	}

	if c.idle <= 0 && c.entries.Size() > 0 {
		c.log.WithField("entries", c.entries.Size()).Debug("cache is idle, clearing")
		evicted += c.entries.Size()
		c.entries.Clear()
		c.bytes = 0
	}
	size := c.bytes
	c.mu.Unlock()

	c.metrics.Evicted(metrics.FileCache, evicted)
	c.metrics.Size(metrics.FileCache, size)
}

func (c *Cache) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()

	info := c.info
	info.Entries = c.entries.Size()
	info.Bytes = c.bytes
	info.Idle = c.idle

	return info
}

// Close stops the background sweeper, if any.
func (c *Cache) Close() {
	c.closed.Do(func() {
		close(c.stop)
		c.wg.Wait()
	})
}

func (c *Cache) sweeper(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
