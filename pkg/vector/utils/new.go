// Package vectorutils builds a vector.Driver from configuration.
package vectorutils

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/localcompute/g4l/pkg/vector"
	"github.com/localcompute/g4l/pkg/vector/chroma"
	"github.com/localcompute/g4l/pkg/vector/pgvector"
	"github.com/localcompute/g4l/pkg/vector/qdrantvec"
	"github.com/localcompute/g4l/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	// ProviderType is one of "sqlite", "chroma", "qdrant" or "pgvector".
	ProviderType string

	// TargetURL is the server address for remote stores.
	TargetURL string

	// SQLitePath is the database file for the sqlite store.
	SQLitePath string

	// Collection names the collection or table for remote stores.
	Collection string

	// Dimensions is the embedding size.
	Dimensions uint

	Logger *zap.Logger
}

// NewVectorDriver opens the store named by o.ProviderType.
func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	switch o.ProviderType {
	case "sqlite", "":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.SQLitePath,
			Dimensions: o.Dimensions,
		}, logger)
	case "chroma":
		return chroma.NewDriver(chroma.Config{
			URL:            o.TargetURL,
			CollectionName: o.Collection,
		}, logger)
	case "qdrant":
		return qdrantvec.NewDriver(ctx, qdrantvec.Config{
			Target:         o.TargetURL,
			CollectionName: o.Collection,
			Dimensions:     o.Dimensions,
		}, logger)
	case "pgvector":
		return pgvector.NewDriver(ctx, pgvector.Config{
			ConnString: o.TargetURL,
			TableName:  o.Collection,
			Dimensions: o.Dimensions,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
