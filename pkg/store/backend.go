package store

import (
	"context"
	"fmt"
	"time"

	"github.com/xhad/redagent/internal/types"
)

const (
	BackendBolt     = "bolt"
	BackendQdrant   = "qdrant"
	BackendPgVector = "pgvector"
)

// BackendConfig selects and configures one of the vector index backends.
type BackendConfig struct {
	Kind     string
	Timeout  time.Duration
	Bolt     BoltConfig
	Qdrant   QdrantConfig
	PgVector PgVectorConfig
}

// OpenBackend connects to the backend named by Kind.
func OpenBackend(ctx context.Context, config BackendConfig) (types.Backend, error) {
	switch config.Kind {
	case BackendBolt, "":
		return NewBoltBackend(config.Bolt)
	case BackendQdrant:
		if config.Qdrant.Timeout == 0 {
			config.Qdrant.Timeout = config.Timeout
		}
		return NewQdrantBackend(config.Qdrant), nil
	case BackendPgVector:
		return NewPgVectorBackend(ctx, config.PgVector)
	default:
		return nil, fmt.Errorf("unknown vector backend %q", config.Kind)
	}
}
