// Package snapshot persists the single active-or-paused timer of a user.
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pomodoro/focus/internal/model"
)

// ErrSnapshotCorrupt is returned by Load when the stored payload cannot be decoded.
var ErrSnapshotCorrupt = errors.New("snapshot corrupt")

// Store keeps at most one timer snapshot under a fixed key.
type Store interface {
	// Load returns (nil, nil) when nothing is stored.
	Load(ctx context.Context) (*model.TimerSnapshot, error)
	// Save overwrites the stored snapshot; it returns once the write is durable.
	Save(ctx context.Context, snapshot model.TimerSnapshot) error
	Clear(ctx context.Context) error
}

// Namespace derives the storage key for a user so accounts sharing a device
// never read each other's timer.
func Namespace(userID string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "timer-anonymous"
	}
	sum := sha256.Sum256([]byte(userID))
	return "timer-" + hex.EncodeToString(sum[:8])
}

func encode(snapshot model.TimerSnapshot) ([]byte, error) {
	if err := snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*model.TimerSnapshot, error) {
	var snapshot model.TimerSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	if err := snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	return &snapshot, nil
}
