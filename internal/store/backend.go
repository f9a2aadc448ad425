package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
	"modernc.org/sqlite"

	"deadlinemaster/internal/domain"
)

// SettingsStore keeps the notification settings as one flat JSON object.
type SettingsStore interface {
	// LoadSettings reports found=false when nothing has been saved yet.
	LoadSettings(ctx context.Context) (s domain.NotificationSettings, found bool, err error)
	SaveSettings(ctx context.Context, s domain.NotificationSettings) error
}

// AlertLog is the delivery history. It is write-mostly and never read by the scheduler.
type AlertLog interface {
	Record(ctx context.Context, r domain.AlertRecord) error
	Recent(ctx context.Context, limit int) ([]domain.AlertRecord, error)
}

type Backend interface {
	Persister
	SettingsStore
	AlertLog
	Close() error
}

const (
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
)

func Open(driver, path string) (Backend, error) {
	switch driver {
	case DriverSQLite, "":
		return OpenSQLite(path)
	case DriverBolt:
		return OpenBolt(path)
	}
	return nil, fmt.Errorf("unknown storage driver %q", driver)
}

// OpenOrRecover opens the backend like Open. When the file at path is not a
// readable database it is renamed to path.corrupt-<unix seconds> and a fresh
// file is created in its place. Lock and permission failures are returned.
func OpenOrRecover(driver, path string) (Backend, error) {
	b, err := Open(driver, path)
	if err == nil || !corrupt(err) {
		return b, err
	}
	aside := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
	log.Error().Err(err).Str("path", path).Str("moved_to", aside).Msg("storage file unreadable, starting empty")
	if rerr := os.Rename(path, aside); rerr != nil {
		return nil, fmt.Errorf("move corrupt storage aside: %w", rerr)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if _, serr := os.Stat(path + suffix); serr == nil {
			_ = os.Rename(path+suffix, aside+suffix)
		}
	}
	return Open(driver, path)
}

func corrupt(err error) bool {
	if errors.Is(err, bbolt.ErrInvalid) || errors.Is(err, bbolt.ErrChecksum) || errors.Is(err, bbolt.ErrVersionMismatch) {
		return true
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case 11, 26: // SQLITE_CORRUPT, SQLITE_NOTADB
			return true
		}
	}
	return false
}

// decodeAssignments reads a JSON array of assignment records. A malformed
// array yields nothing; a malformed record is skipped.
func decodeAssignments(data []byte) []domain.Assignment {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Error().Err(err).Msg("stored assignments are corrupt, starting empty")
		return []domain.Assignment{}
	}
	out := make([]domain.Assignment, 0, len(raw))
	for i, r := range raw {
		var a domain.Assignment
		if err := json.Unmarshal(r, &a); err != nil {
			log.Warn().Err(err).Int("index", i).Msg("skipping unreadable assignment record")
			continue
		}
		out = append(out, a)
	}
	return out
}
