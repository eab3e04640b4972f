package bolt

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bornholm/rewarder/pkg/pool"
	"github.com/gosimple/slug"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

const (
	LoadDateKey = "loadDate"
	dateLayout  = "2006-01-02"
)

var (
	termsBucket = []byte("terms")
	metaBucket  = []byte("meta")
)

// Store persists the pool in a single bbolt file. Each unused term is a key
// of the terms bucket whose value is its insertion sequence, so that the
// insertion order survives bbolt's bytewise key ordering.
type Store struct {
	db *bolt.DB
}

// Path returns the database file of the named store inside dir.
func Path(dir string, name string) string {
	return filepath.Join(dir, slug.Make(name)+".db")
}

// Open opens (or creates) the named store in dir. The file is locked until
// Close is called; a concurrent opener fails after lockTimeout.
func Open(dir string, name string, lockTimeout time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "could not create directory '%s'", dir)
	}

	path := Path(dir, name)

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		return nil, errors.Wrapf(err, "could not open term store '%s'", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(termsBucket); err != nil {
			return errors.WithStack(err)
		}

		if _, err := tx.CreateBucketIfNotExists(metaBucket); err != nil {
			return errors.WithStack(err)
		}

		return nil
	})
	if err != nil {
		db.Close()
		return nil, errors.WithStack(err)
	}

	return &Store{db: db}, nil
}

// Load implements pool.Store.
func (s *Store) Load(ctx context.Context) (pool.State, error) {
	var state pool.State

	err := s.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket(metaBucket).Get([]byte(LoadDateKey)); raw != nil {
			loadDate, err := time.ParseInLocation(dateLayout, string(raw), time.Local)
			if err != nil {
				return errors.Wrapf(err, "invalid load date '%s'", raw)
			}

			state.LoadDate = loadDate
		}

		type entry struct {
			term string
			seq  uint64
		}

		entries := make([]entry, 0)

		err := tx.Bucket(termsBucket).ForEach(func(k, v []byte) error {
			var seq uint64
			if len(v) == 8 {
				seq = binary.BigEndian.Uint64(v)
			}

			entries = append(entries, entry{term: string(k), seq: seq})

			return nil
		})
		if err != nil {
			return errors.WithStack(err)
		}

		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].seq < entries[j].seq
		})

		state.Terms = make([]string, 0, len(entries))
		for _, e := range entries {
			state.Terms = append(state.Terms, e.term)
		}

		return nil
	})
	if err != nil {
		return pool.State{}, errors.WithStack(err)
	}

	return state, nil
}

// Save implements pool.Store.
func (s *Store) Save(ctx context.Context, state pool.State) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := resetBuckets(tx); err != nil {
			return errors.WithStack(err)
		}

		if !state.LoadDate.IsZero() {
			date := []byte(state.LoadDate.Format(dateLayout))
			if err := tx.Bucket(metaBucket).Put([]byte(LoadDateKey), date); err != nil {
				return errors.WithStack(err)
			}
		}

		terms := tx.Bucket(termsBucket)

		for i, t := range state.Terms {
			seq := make([]byte, 8)
			binary.BigEndian.PutUint64(seq, uint64(i))

			if err := terms.Put([]byte(t), seq); err != nil {
				return errors.Wrapf(err, "could not store term '%s'", t)
			}
		}

		return nil
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Clear implements pool.Store.
func (s *Store) Clear(ctx context.Context) error {
	return errors.WithStack(s.db.Update(resetBuckets))
}

// Delete implements pool.Store.
func (s *Store) Delete(ctx context.Context, term string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(termsBucket)
		key := []byte(term)

		if bucket.Get(key) == nil {
			return errors.WithStack(pool.ErrNotFound)
		}

		return errors.WithStack(bucket.Delete(key))
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Close implements pool.Store.
func (s *Store) Close() error {
	if err := s.db.Sync(); err != nil {
		s.db.Close()
		return errors.WithStack(err)
	}

	return errors.WithStack(s.db.Close())
}

func resetBuckets(tx *bolt.Tx) error {
	for _, name := range [][]byte{termsBucket, metaBucket} {
		if tx.Bucket(name) != nil {
			if err := tx.DeleteBucket(name); err != nil {
				return errors.WithStack(err)
			}
		}

		if _, err := tx.CreateBucket(name); err != nil {
			return errors.WithStack(err)
		}
	}

	return nil
}

var _ pool.Store = &Store{}
