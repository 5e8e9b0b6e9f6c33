package curator

import (
	"context"
	"time"
)

// Connector collects items from one external source family. Collect never
// returns an error: internal failures degrade to an empty or partial result.
type Connector interface {
	Name() string
	Collect(ctx context.Context) []Item
}

// Publisher hands the curated set to the downstream sink. The boolean
// reports overall success across all of the sink's internal batches.
type Publisher interface {
	Publish(ctx context.Context, items []Item) bool
}

// SnapshotStore persists the curated snapshot as a whole-object replace.
type SnapshotStore interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (Snapshot, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
