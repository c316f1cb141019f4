// Package resume persists queue and identity state across restarts: a
// bolt-backed key/value store for the offline-user cache and bundle index
// (grounded on the teacher's session.go bucket layout), plus per-bundle XML
// files for the actual queue contents, debounced so a fast-moving download
// doesn't fsync on every segment (spec.md §6.3).
package resume

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/boltdb/bolt"
	uuid "github.com/satori/go.uuid"

	"github.com/airdcpp-go/client/internal/identity"
	"github.com/airdcpp-go/client/internal/logging"
)

var log = logging.New("resume")

// NewBundleToken mints a fresh bundle-record id, the way session.go mints a
// torrent id with uuid.NewV1() on add, for callers (ImportLegacyQueue, when
// a legacy entry has an empty token) that don't already have one.
func NewBundleToken() string {
	return strings.ReplaceAll(uuid.NewV4().String(), "-", "")
}

var (
	bucketOfflineUsers = []byte("offline_users")
	bucketBundleIndex  = []byte("bundle_index")
	bucketMeta         = []byte("meta")
)

// DB owns the bolt database, opened the way session.New opens its DB: one
// file, a fixed set of top-level buckets created on first run.
type DB struct {
	bolt *bolt.DB
}

func Open(path string) (*DB, error) {
	b, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("resume: open %s: %w", path, err)
	}
	err = b.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketOfflineUsers, bucketBundleIndex, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		b.Close()
		return nil, err
	}
	return &DB{bolt: b}, nil
}

func (d *DB) Close() error { return d.bolt.Close() }

// SaveOfflineUser persists one OfflineUser entry, keyed by CID bytes.
func (d *DB) SaveOfflineUser(u *identity.OfflineUser) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOfflineUsers).Put(u.CID[:], data)
	})
}

// LoadOfflineUsers reconstructs the full offline-user cache at startup, the
// way session.loadExistingTorrents reconstructs torrents from their bolt
// entries.
func (d *DB) LoadOfflineUsers() ([]*identity.OfflineUser, error) {
	var out []*identity.OfflineUser
	err := d.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOfflineUsers).ForEach(func(k, v []byte) error {
			var u identity.OfflineUser
			if err := json.Unmarshal(v, &u); err != nil {
				log.Errorf("skip corrupt offline user entry: %v", err)
				return nil
			}
			out = append(out, &u)
			return nil
		})
	})
	return out, err
}

// BundleIndexEntry records where a bundle's XML lives and its token, so
// startup can discover every bundle file without scanning the whole
// filesystem.
type BundleIndexEntry struct {
	Token    string
	XMLPath  string
	AddedAt  time.Time
}

func (d *DB) SaveBundleIndexEntry(e BundleIndexEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBundleIndex).Put([]byte(e.Token), data)
	})
}

func (d *DB) RemoveBundleIndexEntry(token string) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBundleIndex).Delete([]byte(token))
	})
}

func (d *DB) LoadBundleIndex() ([]BundleIndexEntry, error) {
	var out []BundleIndexEntry
	err := d.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBundleIndex).ForEach(func(k, v []byte) error {
			var e BundleIndexEntry
			if err := json.Unmarshal(v, &e); err != nil {
				log.Errorf("skip corrupt bundle index entry: %v", err)
				return nil
			}
			out = append(out, e)
			return nil
		})
	})
	return out, err
}

func (d *DB) SetMeta(key, value string) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put([]byte(key), []byte(value))
	})
}

func (d *DB) GetMeta(key string) (string, bool) {
	var val string
	var found bool
	d.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get([]byte(key))
		if v != nil {
			val = string(v)
			found = true
		}
		return nil
	})
	return val, found
}
