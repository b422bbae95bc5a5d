// Package schema defines the read-only catalog of tables and columns the
// gateway validates queries against. The catalog is supplied by an external
// SchemaProvider and is never mutated by the validator.
package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Column describes one column of a table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// Table describes one table: its columns in declaration order, the primary
// key columns, and foreign keys as column -> "table.column" references.
type Table struct {
	Name        string
	Columns     []Column
	PrimaryKey  []string
	ForeignKeys map[string]string
	Description string
}

// Catalog is the whitelist of tables and columns. All name lookups are
// case-insensitive; keys are stored lowercased.
type Catalog struct {
	tables map[string]Table
}

// Provider supplies the current catalog. Refresh policy (TTL, discovery)
// belongs to the implementation, not the gateway.
type Provider interface {
	GetSchema(ctx context.Context) (*Catalog, error)
}

// NewCatalog builds a catalog from a set of tables. Table and column names
// are indexed lowercased.
func NewCatalog(tables []Table) *Catalog {
	c := &Catalog{tables: make(map[string]Table, len(tables))}
	for _, t := range tables {
		c.tables[strings.ToLower(t.Name)] = t
	}
	return c
}

// HasTable reports whether the table exists in the catalog.
func (c *Catalog) HasTable(name string) bool {
	_, ok := c.tables[strings.ToLower(name)]
	return ok
}

// HasColumn reports whether the column exists in the given table.
func (c *Catalog) HasColumn(table, column string) bool {
	t, ok := c.tables[strings.ToLower(table)]
	if !ok {
		return false
	}
	for _, col := range t.Columns {
		if strings.EqualFold(col.Name, column) {
			return true
		}
	}
	return false
}

// HasColumnAnywhere reports whether any table of the catalog contains the
// column. Used for unqualified column references.
func (c *Catalog) HasColumnAnywhere(column string) bool {
	for name := range c.tables {
		if c.HasColumn(name, column) {
			return true
		}
	}
	return false
}

// Table returns the table definition, if present.
func (c *Catalog) Table(name string) (Table, bool) {
	t, ok := c.tables[strings.ToLower(name)]
	return t, ok
}

// AllowedTables returns all table names, sorted for stable error messages.
func (c *Catalog) AllowedTables() []string {
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllowedColumns returns the column names of a table in declaration order,
// or nil if the table does not exist.
func (c *Catalog) AllowedColumns(table string) []string {
	t, ok := c.tables[strings.ToLower(table)]
	if !ok {
		return nil
	}
	cols := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		cols = append(cols, col.Name)
	}
	return cols
}

// AllColumns returns the union of column names across all tables, sorted
// and deduplicated. Used in error detail for unqualified column misses.
func (c *Catalog) AllColumns() []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, t := range c.tables {
		for _, col := range t.Columns {
			lower := strings.ToLower(col.Name)
			if _, ok := seen[lower]; ok {
				continue
			}
			seen[lower] = struct{}{}
			cols = append(cols, lower)
		}
	}
	sort.Strings(cols)
	return cols
}

// Describe renders the catalog as a readable schema description for LLM
// prompts.
func (c *Catalog) Describe() string {
	var b strings.Builder
	b.WriteString("=== DATABASE SCHEMA ===\n")
	for _, name := range c.AllowedTables() {
		t := c.tables[name]
		fmt.Fprintf(&b, "\nTable: %s\n", name)
		if t.Description != "" {
			fmt.Fprintf(&b, "  Description: %s\n", t.Description)
		}
		b.WriteString("  Columns:\n")
		for _, col := range t.Columns {
			nullable := "NULL"
			if !col.Nullable {
				nullable = "NOT NULL"
			}
			fmt.Fprintf(&b, "    - %s (%s) %s\n", col.Name, col.Type, nullable)
		}
		if len(t.PrimaryKey) > 0 {
			fmt.Fprintf(&b, "  Primary Key: %s\n", strings.Join(t.PrimaryKey, ", "))
		}
		if len(t.ForeignKeys) > 0 {
			b.WriteString("  Foreign Keys:\n")
			fkCols := make([]string, 0, len(t.ForeignKeys))
			for col := range t.ForeignKeys {
				fkCols = append(fkCols, col)
			}
			sort.Strings(fkCols)
			for _, col := range fkCols {
				fmt.Fprintf(&b, "    - %s -> %s\n", col, t.ForeignKeys[col])
			}
		}
	}
	return b.String()
}
