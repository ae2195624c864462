package session

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/vaxmesh/core"
)

// ErrNotFound is returned by Load when no snapshot exists for the id.
var ErrNotFound = errors.New("session: not found")

// Snapshot is everything needed to resume a conversation. Subject is the
// verified caller the conversation belongs to, empty when auth is disabled.
type Snapshot struct {
	SessionID string                   `json:"session_id"`
	Subject   string                   `json:"subject,omitempty"`
	AgentName string                   `json:"agent_name"`
	History   core.ConversationContext `json:"history"`
	UserInfo  core.UserSessionContext  `json:"user_info"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// Store persists snapshots. Implementations must be safe for concurrent use.
type Store interface {
	// Load returns the snapshot for id or ErrNotFound.
	Load(ctx context.Context, id string) (Snapshot, error)
	// Save creates or replaces the snapshot under snap.SessionID.
	Save(ctx context.Context, snap Snapshot) error
	// Delete removes the snapshot. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
	// Close releases the store's resources.
	Close() error
}

// sanitize returns a copy of snap fit for storage.
func sanitize(snap Snapshot) Snapshot {
	out := snap
	out.UserInfo = snap.UserInfo.Clone()
	out.UserInfo.AuthHeader = nil

	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = time.Now().UTC()
	}

	return out
}
