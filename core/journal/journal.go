// Package journal implements an append-only audit trail of lease events
// stored in a bbolt database. The journal is never used to restore leases.
package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/nextlease/core/lease"
	"go.etcd.io/bbolt"
)

// SchemaVersion is the current version of the journal database
const SchemaVersion = "1"

var (
	eventsBucketKey     = []byte("events")
	schemaVersionBucket = []byte("schema-version")
	schemaVersionKey    = []byte("nextlease-journal-version")
)

// ErrSchemaVersion is returned by Open if the database has been created
// by an incompatible version
var ErrSchemaVersion = errors.New("unsupported journal schema version")

type (
	// Journal appends lease events to a bbolt database
	Journal struct {
		db   *bbolt.DB
		path string
	}

	// Entry is a single journal record. Expires and Time are stored as
	// unix timestamps
	Entry struct {
		Seq     uint64 `json:"seq"`
		Event   string `json:"event"`
		Client  string `json:"client"`
		Address string `json:"address,omitempty"`
		Expires int64  `json:"expires,omitempty"`
		Time    int64  `json:"time"`
	}
)

// Open opens or creates the journal database at path
func Open(path string) (*Journal, error) {
	db, err := bbolt.Open(path, 0o660, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := prepare(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db, path: path}, nil
}

// OpenReadOnly opens an existing journal without modifying it
func OpenReadOnly(path string) (*Journal, error) {
	db, err := bbolt.Open(path, 0o660, &bbolt.Options{Timeout: time.Second, ReadOnly: true})
	if err != nil {
		return nil, err
	}

	return &Journal{db: db, path: path}, nil
}

func prepare(db *bbolt.DB) error {
	return db.Update(func(tx *bbolt.Tx) error {
		versionBucket, err := tx.CreateBucketIfNotExists(schemaVersionBucket)
		if err != nil {
			return err
		}

		version := string(versionBucket.Get(schemaVersionKey))
		switch version {
		case "":
			if err := versionBucket.Put(schemaVersionKey, []byte(SchemaVersion)); err != nil {
				return err
			}
		case SchemaVersion:
		default:
			return fmt.Errorf("%w: %q", ErrSchemaVersion, version)
		}

		_, err = tx.CreateBucketIfNotExists(eventsBucketKey)
		return err
	})
}

// Path returns the path of the database file
func (j *Journal) Path() string {
	return j.path
}

// Close closes the underlying database
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append stores event for l and returns the sequence number of the new
// entry
func (j *Journal) Append(ctx context.Context, event caddy.EventName, l *lease.Lease, t time.Time) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	e := Entry{
		Event: string(event),
		Time:  t.Unix(),
	}

	if l != nil {
		e.Client = string(l.Client)
		if len(l.Address) > 0 {
			e.Address = l.Address.String()
		}
		if !l.Expires.IsZero() {
			e.Expires = l.Expires.Unix()
		}
	}

	err := j.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(eventsBucketKey)
		if bucket == nil {
			return errors.New("journal has not been initialized")
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		e.Seq = seq

		blob, err := json.Marshal(e)
		if err != nil {
			return err
		}

		return bucket.Put(seqKey(seq), blob)
	})

	return e.Seq, err
}

// Entries returns all entries with a sequence number greater or equal to
// from in the order they have been appended
func (j *Journal) Entries(ctx context.Context, from uint64) ([]Entry, error) {
	var entries []Entry

	err := j.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(eventsBucketKey)
		if bucket == nil {
			return nil
		}

		cursor := bucket.Cursor()
		for key, blob := cursor.Seek(seqKey(from)); key != nil; key, blob = cursor.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var e Entry
			if err := json.Unmarshal(blob, &e); err != nil {
				return fmt.Errorf("invalid journal entry %d: %w", binary.BigEndian.Uint64(key), err)
			}

			entries = append(entries, e)
		}

		return nil
	})

	return entries, err
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
