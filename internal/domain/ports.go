package domain

import (
	"context"

	"github.com/google/uuid"
)

// Account is a handle into the funds ledger for one participant.
type Account struct {
	ID      string  `json:"id"`
	Balance float64 `json:"balance"`
}

// Ledger is the external funds service. GetAccount and Withdraw may cross a
// network boundary; callers must re-validate their assumptions after either
// call returns. A false Withdraw is the authoritative rejection - the balance
// read is only a pre-check.
type Ledger interface {
	GetAccount(ctx context.Context, participantID uuid.UUID) (*Account, error)
	Withdraw(ctx context.Context, account *Account, amount float64) (bool, error)
}

// World is the simulation host that owns participants and regions. Teleport
// mutates live simulation state; implementations are responsible for
// marshalling that call onto whatever execution lane the host requires.
type World interface {
	IsOnline(ctx context.Context, participantID uuid.UUID) bool
	Position(ctx context.Context, participantID uuid.UUID) (Point3, error)
	Region(ctx context.Context, participantID uuid.UUID) (string, error)
	// ResolveRegion returns the canonical region identifier, or
	// ErrRegionUnresolvable if the host no longer knows the region.
	ResolveRegion(ctx context.Context, regionID string) (string, error)
	Teleport(ctx context.Context, participantID uuid.UUID, regionID string, pos Point3) error
	Notify(ctx context.Context, participantID uuid.UUID, message string) error
}

// SnapshotStore persists the whole session registry. Load returns an empty
// map when nothing has been saved yet; Save replaces the stored snapshot
// atomically with respect to partial writes.
type SnapshotStore interface {
	Load(ctx context.Context) (map[uuid.UUID]Session, error)
	Save(ctx context.Context, sessions map[uuid.UUID]Session) error
}

// ZoneSource is the read side of the zone catalog.
type ZoneSource interface {
	Get(id int) (ZoneDefinition, bool)
	All() map[int]ZoneDefinition
}
