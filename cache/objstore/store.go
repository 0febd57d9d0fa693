// Package objstore implements a content-addressable store of uploaded files. Identical
// contents are stored once per tier, keyed by their sha256 digest.
package objstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dchest/uniuri"
	jsoniter "github.com/json-iterator/go"
	"github.com/lingdar-web/lingdar/cache/lru"
	"github.com/lingdar-web/lingdar/config"
	"github.com/lingdar-web/lingdar/internal/metrics"
	"github.com/sirupsen/logrus"
)

var ErrUnknownObject = errors.New("object is not presented in the store")

const defaultIndexName = "persistents.json"

var hexChars = []byte("0123456789abcdef")

type Tier uint8

const (
	// Temp objects are kept while the tier fits its budget. Once it doesn't, the least
	// recently stored or requested objects go first.
	Temp Tier = iota
	// Persistent objects are never swept and survive restarts.
	Persistent
)

func (t Tier) String() string {
	if t == Persistent {
		return "persistent"
	}

	return "temp"
}

// Object is a handle of a stored file.
type Object struct {
	Digest string
	// Name is the filename inside the tier directory.
	Name string
	Tier Tier
	Size int64
}

type Info struct {
	Writes, Reads, Hits int
	TempObjects         int
	PersistentObjects   int
}

type Store struct {
	cfg       config.ObjectStore
	indexPath string
	log       logrus.FieldLogger
	metrics   *metrics.Metrics

	mu         sync.Mutex
	temp       *lru.Cache[string, string]
	persistent map[string]string
	info       Info

	stop      chan struct{}
	wg        sync.WaitGroup
	destroyed sync.Once
}

// New creates tier directories if they don't exist yet and loads the persistent index. A
// missing or corrupted index isn't an error, the store just starts empty. If sweeping
// is enabled, the background sweeper is started.
func New(cfg config.ObjectStore, log logrus.FieldLogger) (*Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	for _, dir := range []string{cfg.TempDir, cfg.PersistentDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	indexPath := cfg.IndexFile
	if len(indexPath) == 0 {
		indexPath = filepath.Join(cfg.PersistentDir, defaultIndexName)
	}

	s := &Store{
		cfg:        cfg,
		indexPath:  indexPath,
		log:        log.WithField("component", "objstore"),
		temp:       lru.New[string, string](0),
		persistent: loadIndex(indexPath, log),
		stop:       make(chan struct{}),
	}

	if cfg.SweepInterval > 0 {
		s.wg.Add(1)
		go s.sweeper(cfg.SweepInterval)
	}

	return s, nil
}

// SetMetrics attaches the collectors. Must be called before the store is used.
func (s *Store) SetMetrics(m *metrics.Metrics) *Store {
	s.metrics = m
	return s
}

func loadIndex(path string, log logrus.FieldLogger) map[string]string {
	index := make(map[string]string)

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return index
	case err != nil:
		log.WithError(err).WithField("path", path).Warn("cannot read persistent index, starting empty")
		return index
	}

	if err = jsoniter.Unmarshal(data, &index); err != nil {
		log.WithError(err).WithField("path", path).Warn("corrupted persistent index, starting empty")
		return make(map[string]string)
	}

	return index
}

// CacheFile stores the data, unless exactly the same content is already in the tier. In
// that case the previously stored object is returned and nothing is written, except the
// file had vanished from the disk. The suggested name contributes only its extension.
func (s *Store) CacheFile(data []byte, suggestedName string, persistent bool) (Object, error) {
	sum := sha256.Sum256(data)
	obj := Object{
		Digest: hex.EncodeToString(sum[:]),
		Tier:   tierOf(persistent),
		Size:   int64(len(data)),
	}

	s.mu.Lock()
	name, found := s.lookup(obj.Digest, obj.Tier, true)
	s.mu.Unlock()

	if found {
		obj.Name = name
		if _, err := os.Stat(s.Path(obj)); err == nil {
			s.mu.Lock()
			s.info.Hits++
			s.mu.Unlock()
			s.metrics.Hit(metrics.ObjectStore)

			return obj, nil
		}

		s.log.WithField("digest", obj.Digest).Debug("stored file vanished, rewriting")
	} else {
		obj.Name = uniuri.NewLenChars(16, hexChars) + filepath.Ext(suggestedName)
	}

	s.metrics.Miss(metrics.ObjectStore)

	if err := writeFile(s.Path(obj), data); err != nil {
		return Object{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if concurrent, ok := s.lookup(obj.Digest, obj.Tier, false); ok && concurrent != obj.Name {
		// somebody stored the same content meanwhile. Keep theirs
		_ = os.Remove(s.Path(obj))
		obj.Name = concurrent
		return obj, nil
	}

	s.insert(obj)
	s.info.Writes++
	s.log.WithFields(logrus.Fields{
		"action": "store",
		"digest": obj.Digest,
		"tier":   obj.Tier.String(),
	}).Debug("object stored")

	return obj, nil
}

// Promote copies a temporary object into the persistent tier. Persistent objects are
// returned as is.
func (s *Store) Promote(obj Object) (Object, error) {
	if obj.Tier == Persistent {
		return obj, nil
	}

	data, err := s.Read(obj)
	if err != nil {
		return Object{}, err
	}

	return s.CacheFile(data, obj.Name, true)
}

// QueryDigest reports whether the tier knows the digest.
func (s *Store) QueryDigest(digest string, tier Tier) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, found := s.lookup(digest, tier, false)
	return found
}

// Path returns where the object is located on the disk.
func (s *Store) Path(obj Object) string {
	if obj.Tier == Persistent {
		return filepath.Join(s.cfg.PersistentDir, obj.Name)
	}

	return filepath.Join(s.cfg.TempDir, obj.Name)
}

// Read returns the contents of the object. Objects the store doesn't know (e.g. swept ones)
// result in ErrUnknownObject.
func (s *Store) Read(obj Object) ([]byte, error) {
	s.mu.Lock()
	name, found := s.lookup(obj.Digest, obj.Tier, true)
	if found {
		s.info.Reads++
	}
	s.mu.Unlock()

	if !found || name != obj.Name {
		return nil, ErrUnknownObject
	}

	return os.ReadFile(s.Path(obj))
}

// Check keeps the temp tier within its budget. The least recent objects are removed first.
// If there are no more objects known, but the directory is still too large, it's wiped
// entirely.
func (s *Store) Check() {
	size, err := dirSize(s.cfg.TempDir)
	if err != nil {
		s.log.WithError(err).Warn("cannot measure temp directory")
		return
	}

	var evicted int

	for size > s.cfg.TempMaxSize {
		s.mu.Lock()
		entry, ok := s.temp.Pop()
		s.mu.Unlock()

		if !ok {
			s.wipeTemp()
			size = 0
			break
		}

		path := filepath.Join(s.cfg.TempDir, entry.Value)
		if stat, err := os.Stat(path); err == nil {
			size -= stat.Size()
		}

		if err = os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.WithError(err).WithField("path", path).Warn("cannot remove temp object")
		}

		evicted++
	}

	s.metrics.Evicted(metrics.ObjectStore, evicted)
	s.metrics.Size(metrics.ObjectStore, size)
}

func (s *Store) wipeTemp() {
	s.log.WithField("dir", s.cfg.TempDir).Info("temp tier is over budget with nothing to evict, wiping")

	if err := os.RemoveAll(s.cfg.TempDir); err != nil {
		s.log.WithError(err).Warn("cannot wipe temp directory")
	}

	if err := os.MkdirAll(s.cfg.TempDir, 0o755); err != nil {
		s.log.WithError(err).Warn("cannot recreate temp directory")
	}

	s.mu.Lock()
	s.temp.Clear()
	s.mu.Unlock()
}

// Destroy stops the sweeper, flushes the persistent index and removes the temp tier. It's
// safe to be called more than once, only the first call does the job.
func (s *Store) Destroy() (err error) {
	s.destroyed.Do(func() {
		close(s.stop)
		s.wg.Wait()

		s.mu.Lock()
		data, marshalErr := jsoniter.Marshal(s.persistent)
		s.mu.Unlock()

		if marshalErr != nil {
			err = marshalErr
			return
		}

		if err = writeFile(s.indexPath, data); err != nil {
			return
		}

		err = os.RemoveAll(s.cfg.TempDir)
	})

	return err
}

func (s *Store) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := s.info
	info.TempObjects = s.temp.Size()
	info.PersistentObjects = len(s.persistent)

	return info
}

func (s *Store) sweeper(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Check()
		}
	}
}

// lookup must be called with the mutex held.
func (s *Store) lookup(digest string, tier Tier, promote bool) (string, bool) {
	if tier == Persistent {
		name, found := s.persistent[digest]
		return name, found
	}

	if promote {
		return s.temp.Get(digest)
	}

	return s.temp.Peek(digest)
}

// insert must be called with the mutex held.
func (s *Store) insert(obj Object) {
	if obj.Tier == Persistent {
		s.persistent[obj.Digest] = obj.Name
		return
	}

	s.temp.Set(obj.Digest, obj.Name)
}

func tierOf(persistent bool) Tier {
	if persistent {
		return Persistent
	}

	return Temp
}

// writeFile writes into a temporary file first, renaming it into the destination after, so
// readers never observe partially written files.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".objstore-*")
	if err != nil {
		return err
	}

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}

	if err = os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}

	return nil
}

func dirSize(dir string) (size int64, err error) {
	err = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}

			return err
		}

		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		size += info.Size()
		return nil
	})

	return size, err
}
