package airquality

import (
	"context"
)

// Resolver produces a position fix. It is single-shot: one call, one
// platform query, no retry. Failures are classified as location errors.
type Resolver interface {
	Resolve(ctx context.Context) (Coordinates, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context) (Coordinates, error)

func (f ResolverFunc) Resolve(ctx context.Context) (Coordinates, error) { return f(ctx) }

// Provider resolves coordinates to a reading through an external index API.
// Implementations own all field mapping so no provider-specific shape leaks
// past them.
type Provider interface {
	Name() string
	FetchByCoordinates(ctx context.Context, coords Coordinates) (Reading, error)
}

// DeviceSource produces a reading from a paired sensor. A simulated source
// and a real radio transport satisfy the same contract.
type DeviceSource interface {
	FetchFromDevice(ctx context.Context, ref DeviceRef) (DeviceReading, error)
}

// Pairing is the single-slot store that remembers the paired device.
type Pairing interface {
	Load() (DeviceRef, bool, error)
	Save(ref DeviceRef) error
	Clear() error
}

// ReadingStore holds the current reading per identity and the append-only
// history kept by the persistence collaborator.
type ReadingStore interface {
	RecordCurrent(id Identity, r Reading)
	Current(id Identity) (Reading, bool)
	AppendHistory(ctx context.Context, id Identity, r Reading) error
	QueryHistory(ctx context.Context, id Identity) ([]Reading, error)
}

// ReadingSink receives every accepted reading, best effort.
type ReadingSink interface {
	Name() string
	Publish(ctx context.Context, id Identity, r Reading) error
}
