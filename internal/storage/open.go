package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "coursebell/pkg/logx"
)

// Store is the persistence API used by the reminder ledger and preferences.
type Store interface {
	PutMark(ctx context.Context, id string, at time.Time) error
	LoadMarks(ctx context.Context) ([]string, error)
	PutPref(ctx context.Context, key, value string) error
	GetPref(ctx context.Context, key string) (value string, ok bool, err error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
