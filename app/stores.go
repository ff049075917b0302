package app

import (
	"fmt"

	"github.com/kilianp07/fieldboard/config"
	"github.com/kilianp07/fieldboard/core/boardstore"
	"github.com/kilianp07/fieldboard/core/dispatch/logging"
	"github.com/kilianp07/fieldboard/core/jobs"
	infrastore "github.com/kilianp07/fieldboard/infra/boardstore"
	"github.com/kilianp07/fieldboard/infra/jobstore"
)

// NewRegistry builds the job registry selected by cfg.
func NewRegistry(cfg config.JobStoreConfig) (jobs.Registry, error) {
	switch cfg.Backend {
	case "file":
		return jobs.NewFileRegistry(cfg.Path)
	case "http":
		return jobstore.NewHTTPRegistry(cfg.HTTP)
	default:
		return nil, fmt.Errorf("unknown job store backend %q", cfg.Backend)
	}
}

// NewBoardStore builds the board persistence backend selected by cfg.
func NewBoardStore(cfg config.StoreConfig) (boardstore.Store, error) {
	switch cfg.Backend {
	case "memory":
		return boardstore.NewMemoryStore(), nil
	case "file":
		return boardstore.NewFileStore(cfg.Path)
	case "sqlite":
		return infrastore.NewSQLiteStore(cfg.Path)
	case "etcd":
		return infrastore.NewEtcdStore(cfg.Etcd)
	default:
		return nil, fmt.Errorf("unknown board store backend %q", cfg.Backend)
	}
}

// NewJournal builds the change journal selected by cfg. It returns nil when
// journaling is disabled.
func NewJournal(cfg config.JournalConfig) (logging.LogStore, error) {
	switch cfg.Backend {
	case "none":
		return nil, nil
	case "jsonl":
		return logging.NewJSONLStore(cfg.Path)
	case "rotating":
		return logging.NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case "sqlite":
		return logging.NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown journal backend %q", cfg.Backend)
	}
}
