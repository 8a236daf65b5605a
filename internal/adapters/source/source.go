// Package source declares the read-only backends the leaderboard is built from.
package source

import (
	"context"

	"github.com/okian/topten/internal/domain/model"
)

// Names of the available backends.
const (
	KindPostgREST = "postgrest"
	KindSQLite    = "sqlite"
)

// Op names used in FetchError.
const (
	OpObservations = "observations"
	OpCatalog      = "catalog"
)

// RankingSource returns every weekly ranking row, newest date first.
type RankingSource interface {
	FetchObservations(ctx context.Context) ([]model.Observation, error)
}

// ShowCatalog returns static metadata for every known show.
type ShowCatalog interface {
	FetchAll(ctx context.Context) ([]model.ShowMeta, error)
}

// Backend is a store that serves both reads.
type Backend interface {
	RankingSource
	ShowCatalog
}
