package database

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alesierraalta/SQLAgent/pkg/schema"
)

const defaultSchemaRefresh = 5 * time.Minute

// SchemaProvider builds the allowed-catalog from information_schema. The
// catalog is cached and refreshed lazily so validation does not query the
// database per request.
type SchemaProvider struct {
	db           *DB
	schema       string
	refresh      time.Duration
	descriptions map[string]string
	logger       *zap.Logger

	mu        sync.Mutex
	catalog   *schema.Catalog
	fetchedAt time.Time
}

// SchemaProviderConfig tunes catalog introspection. Zero values pick the
// public schema with a five minute refresh.
type SchemaProviderConfig struct {
	Schema  string
	Refresh time.Duration
	// Descriptions maps table name to a free-text description included in
	// the prompt schema.
	Descriptions map[string]string
}

func NewSchemaProvider(db *DB, cfg SchemaProviderConfig, logger *zap.Logger) *SchemaProvider {
	if cfg.Schema == "" {
		cfg.Schema = "public"
	}
	if cfg.Refresh == 0 {
		cfg.Refresh = defaultSchemaRefresh
	}
	return &SchemaProvider{
		db:           db,
		schema:       cfg.Schema,
		refresh:      cfg.Refresh,
		descriptions: cfg.Descriptions,
		logger:       logger.Named("schema-provider"),
	}
}

var _ schema.Provider = (*SchemaProvider)(nil)

// GetSchema returns the cached catalog, refreshing it from
// information_schema when stale.
func (p *SchemaProvider) GetSchema(ctx context.Context) (*schema.Catalog, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.catalog != nil && time.Since(p.fetchedAt) < p.refresh {
		return p.catalog, nil
	}

	catalog, err := p.introspect(ctx)
	if err != nil {
		if p.catalog != nil {
			p.logger.Warn("Schema refresh failed, keeping cached catalog", zap.Error(err))
			return p.catalog, nil
		}
		return nil, err
	}

	p.catalog = catalog
	p.fetchedAt = time.Now()
	return catalog, nil
}

// Invalidate drops the cached catalog so the next GetSchema re-introspects.
func (p *SchemaProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.catalog = nil
}

func (p *SchemaProvider) introspect(ctx context.Context) (*schema.Catalog, error) {
	columns, order, err := p.loadColumns(ctx)
	if err != nil {
		return nil, err
	}
	primaryKeys, err := p.loadPrimaryKeys(ctx)
	if err != nil {
		return nil, err
	}
	foreignKeys, err := p.loadForeignKeys(ctx)
	if err != nil {
		return nil, err
	}

	tables := make([]schema.Table, 0, len(order))
	for _, name := range order {
		tables = append(tables, schema.Table{
			Name:        name,
			Columns:     columns[name],
			PrimaryKey:  primaryKeys[name],
			ForeignKeys: foreignKeys[name],
			Description: p.descriptions[name],
		})
	}

	p.logger.Info("Schema introspected", zap.Int("tables", len(tables)))
	return schema.NewCatalog(tables), nil
}

func (p *SchemaProvider) loadColumns(ctx context.Context) (map[string][]schema.Column, []string, error) {
	const query = `
		SELECT table_name, column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1
		ORDER BY table_name, ordinal_position`

	rows, err := p.db.Query(ctx, query, p.schema)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load columns: %w", err)
	}
	defer rows.Close()

	columns := make(map[string][]schema.Column)
	var order []string
	for rows.Next() {
		var table, column, dataType, nullable string
		if err := rows.Scan(&table, &column, &dataType, &nullable); err != nil {
			return nil, nil, fmt.Errorf("failed to scan column row: %w", err)
		}
		if _, seen := columns[table]; !seen {
			order = append(order, table)
		}
		columns[table] = append(columns[table], schema.Column{
			Name:     column,
			Type:     dataType,
			Nullable: strings.EqualFold(nullable, "YES"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to load columns: %w", err)
	}
	return columns, order, nil
}

func (p *SchemaProvider) loadPrimaryKeys(ctx context.Context) (map[string][]string, error) {
	const query = `
		SELECT tc.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = $1
		ORDER BY kcu.ordinal_position`

	rows, err := p.db.Query(ctx, query, p.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load primary keys: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, fmt.Errorf("failed to scan primary key row: %w", err)
		}
		out[table] = append(out[table], column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load primary keys: %w", err)
	}
	return out, nil
}

func (p *SchemaProvider) loadForeignKeys(ctx context.Context) (map[string]map[string]string, error) {
	const query = `
		SELECT tc.table_name, kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name
			AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1`

	rows, err := p.db.Query(ctx, query, p.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load foreign keys: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string]string)
	for rows.Next() {
		var table, column, refTable, refColumn string
		if err := rows.Scan(&table, &column, &refTable, &refColumn); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key row: %w", err)
		}
		if out[table] == nil {
			out[table] = make(map[string]string)
		}
		out[table][column] = refTable + "." + refColumn
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load foreign keys: %w", err)
	}
	return out, nil
}
