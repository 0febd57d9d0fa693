package objstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lingdar-web/lingdar/config"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func getConfig(t *testing.T) config.ObjectStore {
	root := t.TempDir()
	cfg := config.Default().ObjectStore
	cfg.TempDir = filepath.Join(root, "temp")
	cfg.PersistentDir = filepath.Join(root, "persistent")
	cfg.IndexFile = ""
	cfg.SweepInterval = 0

	return cfg
}

func nopLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

func newStore(t *testing.T, cfg config.ObjectStore) *Store {
	s, err := New(cfg, nopLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Destroy()
	})

	return s
}

func TestCacheFile(t *testing.T) {
	t.Run("deduplication", func(t *testing.T) {
		s := newStore(t, getConfig(t))

		first, err := s.CacheFile([]byte("hello"), "greeting.txt", false)
		require.NoError(t, err)
		second, err := s.CacheFile([]byte("hello"), "other-name.bin", false)
		require.NoError(t, err)

		require.Equal(t, first, second)
		require.True(t, strings.HasSuffix(first.Name, ".txt"))
		require.Regexp(t, `^[0-9a-f]{16}\.txt$`, first.Name)
		require.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", first.Digest)

		info := s.Info()
		require.Equal(t, 1, info.Writes)
		require.Equal(t, 1, info.Hits)
		require.Equal(t, 1, info.TempObjects)
	})

	t.Run("tiers are independent", func(t *testing.T) {
		s := newStore(t, getConfig(t))

		temp, err := s.CacheFile([]byte("data"), "a.txt", false)
		require.NoError(t, err)
		persistent, err := s.CacheFile([]byte("data"), "a.txt", true)
		require.NoError(t, err)

		require.Equal(t, temp.Digest, persistent.Digest)
		require.NotEqual(t, s.Path(temp), s.Path(persistent))
		require.True(t, s.QueryDigest(temp.Digest, Temp))
		require.True(t, s.QueryDigest(temp.Digest, Persistent))
		require.Equal(t, 2, s.Info().Writes)
	})

	t.Run("vanished file is rewritten", func(t *testing.T) {
		s := newStore(t, getConfig(t))

		obj, err := s.CacheFile([]byte("fragile"), "f", false)
		require.NoError(t, err)
		require.NoError(t, os.Remove(s.Path(obj)))

		again, err := s.CacheFile([]byte("fragile"), "f", false)
		require.NoError(t, err)
		require.Equal(t, obj.Name, again.Name)
		require.Equal(t, 2, s.Info().Writes)

		data, err := s.Read(again)
		require.NoError(t, err)
		require.Equal(t, "fragile", string(data))
	})

	t.Run("binary content", func(t *testing.T) {
		s := newStore(t, getConfig(t))
		content := []byte{0, 1, 2, 0xff, '\r', '\n', 0}

		obj, err := s.CacheFile(content, "blob.bin", false)
		require.NoError(t, err)
		data, err := s.Read(obj)
		require.NoError(t, err)
		require.Equal(t, content, data)
		require.Equal(t, int64(len(content)), obj.Size)
	})
}

func TestRead(t *testing.T) {
	s := newStore(t, getConfig(t))

	_, err := s.Read(Object{Digest: "nope", Name: "nope"})
	require.ErrorIs(t, err, ErrUnknownObject)

	obj, err := s.CacheFile([]byte("x"), "x", false)
	require.NoError(t, err)
	_, err = s.Read(Object{Digest: obj.Digest, Name: obj.Name, Tier: Persistent})
	require.ErrorIs(t, err, ErrUnknownObject)
}

func TestPromote(t *testing.T) {
	s := newStore(t, getConfig(t))

	temp, err := s.CacheFile([]byte("keep me"), "doc.pdf", false)
	require.NoError(t, err)

	persistent, err := s.Promote(temp)
	require.NoError(t, err)
	require.Equal(t, Persistent, persistent.Tier)
	require.Equal(t, temp.Digest, persistent.Digest)
	require.Equal(t, ".pdf", filepath.Ext(persistent.Name))

	same, err := s.Promote(persistent)
	require.NoError(t, err)
	require.Equal(t, persistent, same)
}

func TestPersistentIndex(t *testing.T) {
	t.Run("survives restart", func(t *testing.T) {
		cfg := getConfig(t)
		s, err := New(cfg, nopLogger())
		require.NoError(t, err)

		obj, err := s.CacheFile([]byte("forever"), "f.txt", true)
		require.NoError(t, err)
		_, err = s.CacheFile([]byte("ephemeral"), "e.txt", false)
		require.NoError(t, err)
		require.NoError(t, s.Destroy())
		require.NoError(t, s.Destroy())

		_, err = os.Stat(cfg.TempDir)
		require.ErrorIs(t, err, os.ErrNotExist)
		_, err = os.Stat(filepath.Join(cfg.PersistentDir, "persistents.json"))
		require.NoError(t, err)

		restored := newStore(t, cfg)
		require.True(t, restored.QueryDigest(obj.Digest, Persistent))
		require.Equal(t, 1, restored.Info().PersistentObjects)
		require.Zero(t, restored.Info().TempObjects)

		data, err := restored.Read(obj)
		require.NoError(t, err)
		require.Equal(t, "forever", string(data))

		again, err := restored.CacheFile([]byte("forever"), "whatever", true)
		require.NoError(t, err)
		require.Equal(t, obj.Name, again.Name)
		require.Zero(t, restored.Info().Writes)
	})

	t.Run("corrupted index", func(t *testing.T) {
		cfg := getConfig(t)
		require.NoError(t, os.MkdirAll(cfg.PersistentDir, 0o755))
		index := filepath.Join(cfg.PersistentDir, "persistents.json")
		require.NoError(t, os.WriteFile(index, []byte("{not a json"), 0o644))

		s := newStore(t, cfg)
		require.Zero(t, s.Info().PersistentObjects)
	})
}

func TestCheck(t *testing.T) {
	t.Run("evicts least recent", func(t *testing.T) {
		cfg := getConfig(t)
		cfg.TempMaxSize = 25
		s := newStore(t, cfg)

		a, err := s.CacheFile([]byte(strings.Repeat("a", 10)), "a", false)
		require.NoError(t, err)
		b, err := s.CacheFile([]byte(strings.Repeat("b", 10)), "b", false)
		require.NoError(t, err)
		c, err := s.CacheFile([]byte(strings.Repeat("c", 10)), "c", false)
		require.NoError(t, err)
		_, err = s.CacheFile([]byte(strings.Repeat("a", 10)), "a", false)
		require.NoError(t, err)

		s.Check()

		require.True(t, s.QueryDigest(a.Digest, Temp))
		require.False(t, s.QueryDigest(b.Digest, Temp))
		require.True(t, s.QueryDigest(c.Digest, Temp))
		_, err = os.Stat(s.Path(b))
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("within budget", func(t *testing.T) {
		cfg := getConfig(t)
		cfg.TempMaxSize = 100
		s := newStore(t, cfg)

		obj, err := s.CacheFile([]byte("small"), "s", false)
		require.NoError(t, err)
		s.Check()
		require.True(t, s.QueryDigest(obj.Digest, Temp))
	})

	t.Run("wipes unknown leftovers", func(t *testing.T) {
		cfg := getConfig(t)
		cfg.TempMaxSize = 10
		s := newStore(t, cfg)

		stray := filepath.Join(cfg.TempDir, "stray")
		require.NoError(t, os.WriteFile(stray, []byte(strings.Repeat("x", 100)), 0o644))

		s.Check()

		_, err := os.Stat(stray)
		require.ErrorIs(t, err, os.ErrNotExist)
		stat, err := os.Stat(cfg.TempDir)
		require.NoError(t, err)
		require.True(t, stat.IsDir())
	})

	t.Run("persistent tier is never swept", func(t *testing.T) {
		cfg := getConfig(t)
		cfg.TempMaxSize = 1
		s := newStore(t, cfg)

		obj, err := s.CacheFile([]byte("persistent content"), "p", true)
		require.NoError(t, err)
		s.Check()
		require.True(t, s.QueryDigest(obj.Digest, Persistent))
	})
}
