package app

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"SolarFeed/internal/model"
)

var (
	bucketReadings = []byte("readings")
	bucketUsers    = []byte("users")
)

// ErrUserExists is returned when registering an email twice.
var ErrUserExists = errors.New("user already exists")

// User is a dashboard account, keyed by its lowercased email.
type User struct {
	ID           uint64 `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	PasswordHash string `json:"password_hash"`
}

// Store keeps ingested readings in arrival order, and the dashboard users, in
// a BoltDB file.
type Store struct {
	db *bbolt.DB
}

// OpenStore opens or creates the database at path.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketReadings, bucketUsers} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Append stores r under the next sequence number.
func (s *Store) Append(r model.Reading) error {
	v, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketReadings)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(itob(seq), v)
	})
}

// Latest returns the most recently stored reading.
func (s *Store) Latest() (model.Reading, bool, error) {
	var (
		r  model.Reading
		ok bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		_, v := tx.Bucket(bucketReadings).Cursor().Last()
		if v == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(v, &r)
	})
	if err != nil {
		return model.Reading{}, false, fmt.Errorf("read latest: %w", err)
	}
	return r, ok, nil
}

// History returns up to limit of the newest readings, oldest first.
func (s *Store) History(limit int) ([]model.Reading, error) {
	out := []model.Reading{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketReadings).Cursor()
		for k, v := c.Last(); k != nil && len(out) < limit; k, v = c.Prev() {
			var r model.Reading
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode %d: %w", binary.BigEndian.Uint64(k), err)
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Each calls fn for every reading, oldest first, stopping at the first error.
func (s *Store) Each(fn func(model.Reading) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketReadings).ForEach(func(_, v []byte) error {
			var r model.Reading
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			return fn(r)
		})
	})
}

// Count returns the number of stored readings.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketReadings).Stats().KeyN
		return nil
	})
	return n, err
}

// CreateUser assigns u an id and stores it. The email must be normalized by
// the caller.
func (s *Store) CreateUser(u User) (User, error) {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		if b.Get([]byte(u.Email)) != nil {
			return ErrUserExists
		}
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		u.ID = id
		v, err := json.Marshal(u)
		if err != nil {
			return err
		}
		return b.Put([]byte(u.Email), v)
	})
	if err != nil {
		return User{}, fmt.Errorf("create user %s: %w", u.Email, err)
	}
	return u, nil
}

// UserByEmail looks up a user by normalized email.
func (s *Store) UserByEmail(email string) (User, bool, error) {
	var (
		u  User
		ok bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketUsers).Get([]byte(email))
		if v == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(v, &u)
	})
	if err != nil {
		return User{}, false, fmt.Errorf("read user %s: %w", email, err)
	}
	return u, ok, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
