//go:build integration

package database

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alesierraalta/SQLAgent/pkg/testhelpers"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	tdb := testhelpers.GetTestDB(t)
	return &DB{Pool: tdb.Pool}
}

func TestExecutor_Execute(t *testing.T) {
	db := testDB(t)
	e := NewExecutor(db, ExecutorConfig{}, zap.NewNop())

	data, count, err := e.Execute(context.Background(),
		"SELECT country, sum(revenue) AS total FROM sales GROUP BY country ORDER BY country")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "AR", rows[0]["country"])
	assert.Equal(t, "US", rows[1]["country"])
}

func TestExecutor_RowCap(t *testing.T) {
	db := testDB(t)
	e := NewExecutor(db, ExecutorConfig{MaxRows: 2}, zap.NewNop())

	_, count, err := e.Execute(context.Background(), "SELECT id FROM sales ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "result sets are truncated at the row cap")
}

func TestExecutor_WriteRejectedByReadOnlyTx(t *testing.T) {
	db := testDB(t)
	e := NewExecutor(db, ExecutorConfig{}, zap.NewNop())

	_, _, err := e.Execute(context.Background(), "DELETE FROM sales")
	require.Error(t, err, "writes must fail inside the read-only transaction")
}

func TestExecutor_QueryError(t *testing.T) {
	db := testDB(t)
	e := NewExecutor(db, ExecutorConfig{}, zap.NewNop())

	_, _, err := e.Execute(context.Background(), "SELECT nope FROM sales")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestSchemaProvider_GetSchema(t *testing.T) {
	db := testDB(t)
	p := NewSchemaProvider(db, SchemaProviderConfig{}, zap.NewNop())

	catalog, err := p.GetSchema(context.Background())
	require.NoError(t, err)

	assert.True(t, catalog.HasTable("sales"))
	assert.True(t, catalog.HasTable("products"))
	assert.True(t, catalog.HasColumn("sales", "revenue"))
	assert.False(t, catalog.HasColumn("sales", "nonexistent"))

	salesTable, ok := catalog.Table("sales")
	require.True(t, ok)
	assert.Equal(t, []string{"id"}, salesTable.PrimaryKey)
	assert.Equal(t, "products.id", salesTable.ForeignKeys["product_id"])

	// Second call serves from cache.
	again, err := p.GetSchema(context.Background())
	require.NoError(t, err)
	assert.Same(t, catalog, again)
}
