// Package persist saves and restores engine state as versioned JSON
// snapshots on local disk.
package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/atlas-desktop/papertrade/internal/learning"
	"github.com/atlas-desktop/papertrade/internal/ledger"
	"github.com/atlas-desktop/papertrade/pkg/types"
	"go.uber.org/zap"
)

// SchemaVersion is written into every snapshot. Older versions are
// accepted as long as they unmarshal; unknown fields are ignored.
const SchemaVersion = 1

const snapshotFile = "snapshot.json"

// Snapshot is the full persisted engine state.
type Snapshot struct {
	SchemaVersion int                    `json:"schemaVersion"`
	SavedAt       time.Time              `json:"savedAt"`
	Portfolio     ledger.State           `json:"portfolio"`
	Sessions      []types.TradingSession `json:"sessions"`
	Learning      learning.State         `json:"learning"`
}

// Store reads and writes snapshots under a data directory.
type Store struct {
	logger  *zap.Logger
	dataDir string
}

// NewStore creates the data directory if needed.
func NewStore(logger *zap.Logger, dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Store{logger: logger.Named("persist"), dataDir: dataDir}, nil
}

// Save writes the snapshot atomically: marshal to a temp file in the
// same directory, then rename over the previous snapshot.
func (s *Store) Save(snap Snapshot) error {
	snap.SchemaVersion = SchemaVersion

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(s.dataDir, snapshotFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	if err := os.Rename(tmpName, s.path()); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	s.logger.Debug("snapshot saved",
		zap.Int("bytes", len(data)),
		zap.Int("sessions", len(snap.Sessions)))
	return nil
}

// Load reads the latest snapshot. A missing file returns (nil, nil),
// meaning a fresh start; a corrupt file returns an error so the caller
// can refuse to trade on partial state.
func (s *Store) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("corrupt snapshot: %w", err)
	}
	if snap.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("snapshot schema version %d is newer than supported %d",
			snap.SchemaVersion, SchemaVersion)
	}

	s.logger.Info("snapshot loaded",
		zap.Time("savedAt", snap.SavedAt),
		zap.Int("sessions", len(snap.Sessions)))
	return &snap, nil
}

func (s *Store) path() string {
	return filepath.Join(s.dataDir, snapshotFile)
}
