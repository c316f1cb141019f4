package resume

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airdcpp-go/client/internal/queue"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "resume.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBundleStoreSaveAndLoadRoundTrip(t *testing.T) {
	db := openTestDB(t)
	store := NewBundleStore(t.TempDir(), time.Millisecond, db)

	b := queue.NewBundle("tok1", "/downloads/movie")
	f := queue.NewQueueFile("ftok1", "/downloads/movie/movie.mkv", 1000, "TTHVALUE")
	f.MarkDone(queue.Segment{Start: 0, Size: 500})
	b.AddFile(f)

	require.NoError(t, store.save(b))

	loaded, err := Load(filepath.Join(store.dir, "tok1.xml"))
	require.NoError(t, err)
	assert.Equal(t, "tok1", loaded.Token)
	assert.Equal(t, "/downloads/movie", loaded.Target)
	require.Len(t, loaded.Files, 1)
	assert.Equal(t, "TTHVALUE", loaded.Files[0].TTH)
	assert.Equal(t, int64(500), loaded.Files[0].BytesDone())
}

func TestBundleStoreScheduleSaveDebounces(t *testing.T) {
	db := openTestDB(t)
	store := NewBundleStore(t.TempDir(), 20*time.Millisecond, db)

	b := queue.NewBundle("tok2", "/downloads/pack")
	f := queue.NewQueueFile("ftok2", "/downloads/pack/a.bin", 100, "TTH2")
	b.AddFile(f)

	store.ScheduleSave(b)
	store.ScheduleSave(b) // should reset the same timer, not create a second one

	time.Sleep(60 * time.Millisecond)

	entries, err := db.LoadBundleIndex()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "tok2", entries[0].Token)
}

func TestLoadAllReconstructsBundlesFromIndex(t *testing.T) {
	db := openTestDB(t)
	store := NewBundleStore(t.TempDir(), time.Millisecond, db)

	for i, tok := range []string{"b1", "b2"} {
		b := queue.NewBundle(tok, "/downloads/"+tok)
		f := queue.NewQueueFile("f"+tok, "/downloads/"+tok+"/file.bin", int64(100*(i+1)), "TTH"+tok)
		b.AddFile(f)
		require.NoError(t, store.save(b))
	}

	bundles, err := LoadAll(db)
	require.NoError(t, err)
	assert.Len(t, bundles, 2)
}
