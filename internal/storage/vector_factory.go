package storage

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	"brewbook/internal/config"
)

// NewVectorIndex selects a vector index implementation based on configuration.
// An empty provider disables semantic search and returns nil.
func NewVectorIndex(cfg config.VectorDBConfig, db *sqlx.DB, logger *slog.Logger) (VectorIndex, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	switch provider {
	case "":
		return nil, nil
	case "pgvector":
		if db == nil {
			return nil, fmt.Errorf("pgvector requires a database connection")
		}
		return NewPgVectorIndex(db, cfg.Dimension), nil
	case "qdrant":
		index, err := NewQdrantIndex(cfg, logger)
		if err != nil {
			return nil, err
		}
		return index, nil
	case "elasticsearch":
		index, err := NewElasticIndex(cfg, logger)
		if err != nil {
			return nil, err
		}
		return index, nil
	default:
		return nil, fmt.Errorf("unsupported vector provider %q", cfg.Provider)
	}
}
