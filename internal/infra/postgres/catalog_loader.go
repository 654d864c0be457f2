package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"daily-reflection-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// CatalogLoader loads catalog JSONB from Postgres.
type CatalogLoader struct {
	pool      *pgxpool.Pool
	catalogID string
}

func NewCatalogLoader(pool *pgxpool.Pool, catalogID string) *CatalogLoader {
	if catalogID == "" {
		catalogID = "default"
	}
	return &CatalogLoader{pool: pool, catalogID: catalogID}
}

func (l *CatalogLoader) LoadCatalog(ctx context.Context) (domain.Catalog, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM catalogs WHERE id=$1`, l.catalogID).Scan(&raw)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("load catalog: %w", err)
	}
	var catalog domain.Catalog
	if err := json.Unmarshal(raw, &catalog); err != nil {
		return domain.Catalog{}, fmt.Errorf("unmarshal catalog: %w", err)
	}
	if catalog.ID == "" {
		catalog.ID = l.catalogID
	}
	return catalog, nil
}
