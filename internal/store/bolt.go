package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"

	"deadlinemaster/internal/domain"
)

var (
	bucketMain   = []byte("DeadlineMaster")
	bucketAlerts = []byte("Alerts")
)

const assignmentsKey = "deadline_master"

// Bolt keeps assignments and settings as JSON values in a bbolt file.
type Bolt struct {
	db *bbolt.DB
}

func OpenBolt(path string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMain, bucketAlerts} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) Close() error { return b.db.Close() }

func put[T any](db *bbolt.DB, bucket []byte, key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return db.Update(func(tx *bbolt.Tx) error {
		bk, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		return bk.Put([]byte(key), data)
	})
}

// raw returns a copy of the value at key, or nil when absent.
func raw(db *bbolt.DB, bucket []byte, key string) ([]byte, error) {
	var out []byte
	err := db.View(func(tx *bbolt.Tx) error {
		bk := tx.Bucket(bucket)
		if bk == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}
		if v := bk.Get([]byte(key)); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

func (b *Bolt) Save(_ context.Context, list []domain.Assignment) error {
	if list == nil {
		list = []domain.Assignment{}
	}
	return put(b.db, bucketMain, assignmentsKey, list)
}

func (b *Bolt) Load(_ context.Context) []domain.Assignment {
	data, err := raw(b.db, bucketMain, assignmentsKey)
	if err != nil {
		log.Error().Err(err).Msg("load assignments from bolt, starting empty")
		return []domain.Assignment{}
	}
	if data == nil {
		return []domain.Assignment{}
	}
	return decodeAssignments(data)
}

func (b *Bolt) LoadSettings(_ context.Context) (domain.NotificationSettings, bool, error) {
	data, err := raw(b.db, bucketMain, settingsKey)
	if err != nil || data == nil {
		return domain.NotificationSettings{}, false, err
	}
	var ns domain.NotificationSettings
	if err := json.Unmarshal(data, &ns); err != nil {
		return domain.NotificationSettings{}, true, fmt.Errorf("decode settings: %w", err)
	}
	return ns, true, nil
}

func (b *Bolt) SaveSettings(_ context.Context, ns domain.NotificationSettings) error {
	return put(b.db, bucketMain, settingsKey, ns)
}

// Record stores r under a key that sorts by firing time.
func (b *Bolt) Record(_ context.Context, r domain.AlertRecord) error {
	return put(b.db, bucketAlerts, historyTime(r.FiredAt)+"_"+r.ID, r)
}

func (b *Bolt) Recent(_ context.Context, limit int) ([]domain.AlertRecord, error) {
	var out []domain.AlertRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		bk := tx.Bucket(bucketAlerts)
		if bk == nil {
			return nil
		}
		c := bk.Cursor()
		for k, v := c.Last(); k != nil && (limit <= 0 || len(out) < limit); k, v = c.Prev() {
			var r domain.AlertRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode alert %s: %w", k, err)
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}
