package service

import (
	"time"

	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	bbolt "go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

var (
	// ErrNotFound is returned for unknown packs and users.
	ErrNotFound = xerrors.New("not found")
	// ErrExists is returned when creating a record twice.
	ErrExists = xerrors.New("already exists")
)

// Pack is the stored state of one water pack.
type Pack struct {
	Serial          string
	Status          string
	CreatedBy       string
	CreatedAt       int64
	UpdatedAt       int64
	BlockIndex      uint64
	BlockHash       []byte `protobuf:"opt"`
	RejectionReason string `protobuf:"opt"`
}

// User is a registered account.
type User struct {
	Username     string
	PasswordHash []byte
	Role         string
	CreatedAt    int64
	// Approved users may log in.
	Approved bool
}

// PackDB stores packs and users in bbolt, one bucket each, values encoded
// with protobuf.
type PackDB struct {
	*bbolt.DB
}

// OpenPackDB opens or creates the database file and its buckets.
func OpenPackDB(path string) (*PackDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, xerrors.Errorf("opening %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{packBucket, userBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, xerrors.Errorf("creating buckets: %w", err)
	}
	log.Lvlf2("Opened pack database %s", path)
	return &PackDB{DB: db}, nil
}

func putRecord(b *bbolt.Bucket, key string, record interface{}) error {
	val, err := protobuf.Encode(record)
	if err != nil {
		return xerrors.Errorf("encoding %s: %w", key, err)
	}
	return b.Put([]byte(key), val)
}

func getRecord(b *bbolt.Bucket, key string, record interface{}) error {
	val := b.Get([]byte(key))
	if val == nil {
		return ErrNotFound
	}
	// bbolt values are only valid inside the transaction.
	buf := make([]byte, len(val))
	copy(buf, val)
	if err := protobuf.Decode(buf, record); err != nil {
		return xerrors.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

// CreatePack stores a new pack. The serial must not exist yet.
func (db *PackDB) CreatePack(p *Pack) error {
	return db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(packBucket)
		if b.Get([]byte(p.Serial)) != nil {
			return xerrors.Errorf("pack %s: %w", p.Serial, ErrExists)
		}
		return putRecord(b, p.Serial, p)
	})
}

// GetPack returns the pack stored under serial.
func (db *PackDB) GetPack(serial string) (*Pack, error) {
	p := &Pack{}
	err := db.View(func(tx *bbolt.Tx) error {
		return getRecord(tx.Bucket(packBucket), serial, p)
	})
	if err != nil {
		return nil, xerrors.Errorf("pack %s: %w", serial, err)
	}
	return p, nil
}

// UpdatePack loads a pack, hands it to fn and stores the result, all in one
// transaction. Nothing is written when fn fails.
func (db *PackDB) UpdatePack(serial string, fn func(*Pack) error) (*Pack, error) {
	p := &Pack{}
	err := db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(packBucket)
		if err := getRecord(b, serial, p); err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		return putRecord(b, serial, p)
	})
	if err != nil {
		return nil, xerrors.Errorf("pack %s: %w", serial, err)
	}
	return p, nil
}

// PackStats returns the number of packs per status.
func (db *PackDB) PackStats() (map[string]int, error) {
	counts := make(map[string]int)
	err := db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(packBucket)
		return b.ForEach(func(k, v []byte) error {
			p := &Pack{}
			if err := getRecord(b, string(k), p); err != nil {
				return err
			}
			counts[p.Status]++
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// CreateUser stores a new user. The username must not exist yet.
func (db *PackDB) CreateUser(u *User) error {
	return db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(userBucket)
		if b.Get([]byte(u.Username)) != nil {
			return xerrors.Errorf("user %s: %w", u.Username, ErrExists)
		}
		return putRecord(b, u.Username, u)
	})
}

// GetUser returns the user stored under username.
func (db *PackDB) GetUser(username string) (*User, error) {
	u := &User{}
	err := db.View(func(tx *bbolt.Tx) error {
		return getRecord(tx.Bucket(userBucket), username, u)
	})
	if err != nil {
		return nil, xerrors.Errorf("user %s: %w", username, err)
	}
	return u, nil
}

// UpdateUser loads a user, hands it to fn and stores the result in one
// transaction.
func (db *PackDB) UpdateUser(username string, fn func(*User) error) (*User, error) {
	u := &User{}
	err := db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(userBucket)
		if err := getRecord(b, username, u); err != nil {
			return err
		}
		if err := fn(u); err != nil {
			return err
		}
		return putRecord(b, username, u)
	})
	if err != nil {
		return nil, xerrors.Errorf("user %s: %w", username, err)
	}
	return u, nil
}
