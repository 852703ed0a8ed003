package domain

import "context"

// SourceConnector fetches and parses listing data for one external source.
// Errors returned here never reach the engine's caller: the engine records
// them as a failed SourceOutcome.
type SourceConnector interface {
	Source() SourceID
	DiscoverManufacturers(ctx context.Context, keyword string) ([]RawManufacturer, error)
	SearchProducts(ctx context.Context, keyword string, manufacturers []string) ([]RawProduct, error)
}

// SessionRepository persists search sessions for the delivery layer
type SessionRepository interface {
	Get(ctx context.Context, id string) (*SearchSession, error)
	// Save stores s only if the stored revision still equals expectedRevision
	// (0 for a session that does not exist yet). Otherwise ErrStaleSession.
	Save(ctx context.Context, s *SearchSession, expectedRevision int64) error
}
