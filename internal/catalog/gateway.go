// Package catalog provides the product search gateway: ranked full-text
// lookup over catalog records plus nearest-neighbor lookup by image
// embedding. The engine treats the gateway as an external collaborator; the
// in-memory Index in this package is the default implementation, built at
// startup from the persisted catalog.
package catalog

import (
	"context"

	"github.com/QHanh/ChatbotHM/internal/domain"
)

// Query is one paginated catalog search.
//
// Name is required; Category defaults to Name when empty (the storefront
// categories often repeat the head noun of the product name). Properties
// only boosts ranking unless StrictProperties is set, in which case it is a
// hard filter; StrictCategory does the same for Category. Both strict flags
// are used by "show more" pagination so follow-up pages stay on topic.
type Query struct {
	Name             string
	Category         string
	Properties       string
	Offset           int
	PageSize         int
	StrictCategory   bool
	StrictProperties bool
}

// Gateway is the catalog search contract consumed by the engine.
//
// Implementations must be safe for concurrent use. Failures are surfaced as
// errors; the engine degrades them to empty result sets.
type Gateway interface {
	// Search returns one page of ranked products for q.
	Search(ctx context.Context, q Query) ([]domain.Product, error)

	// SearchByImage returns up to topK products whose image embedding has
	// cosine similarity >= minSim with vec, best first.
	SearchByImage(ctx context.Context, vec []float32, topK int, minSim float64) ([]domain.Product, error)
}
