package patterns

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStore_RecordAndFind(t *testing.T) {
	s := NewStore("", zap.NewNop())

	s.RecordCorrection(
		"SELECT revenu FROM sales",
		`column "revenu" does not exist`,
		"SELECT revenue FROM sales",
	)

	corrected, ok := s.FindCorrection("SELECT revenu FROM sales", `column "revenu" does not exist`)
	require.True(t, ok)
	assert.Equal(t, "SELECT revenue FROM sales", corrected)

	_, ok = s.FindCorrection("SELECT price FROM sales", "some other error")
	assert.False(t, ok)
}

func TestStore_LiteralsCollapseToOnePattern(t *testing.T) {
	s := NewStore("", zap.NewNop())

	s.RecordCorrection(
		"SELECT revenu FROM sales",
		`column "revenu" does not exist at position 8`,
		"SELECT revenue FROM sales",
	)

	// Same mistake, different quoted identifier content and position.
	corrected, ok := s.FindCorrection(
		"select   revenu from sales",
		`COLUMN "something_else" does not exist at position 42`,
	)
	require.True(t, ok)
	assert.Equal(t, "SELECT revenue FROM sales", corrected)
}

func TestStore_IdenticalCorrectionIgnored(t *testing.T) {
	s := NewStore("", zap.NewNop())

	s.RecordCorrection("SELECT id FROM sales", "timeout", "select  id\nfrom sales")

	assert.Equal(t, 0, s.Stats().Patterns)
}

func TestStore_RepeatRecordingCountsSuccess(t *testing.T) {
	s := NewStore("", zap.NewNop())

	s.RecordCorrection("SELECT a FROM t", "err 1", "SELECT b FROM t")
	s.RecordCorrection("SELECT a FROM t", "err 2", "SELECT c FROM t")

	stats := s.Stats()
	assert.Equal(t, 1, stats.Patterns)
	assert.Equal(t, 2, stats.TotalSuccesses)

	corrected, ok := s.FindCorrection("SELECT a FROM t", "err 3")
	require.True(t, ok)
	assert.Equal(t, "SELECT c FROM t", corrected, "latest correction wins")
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.json")

	s := NewStore(path, zap.NewNop())
	s.RecordCorrection("SELECT a FROM t", "boom", "SELECT b FROM t")

	reopened := NewStore(path, zap.NewNop())
	corrected, ok := reopened.FindCorrection("SELECT a FROM t", "boom")
	require.True(t, ok)
	assert.Equal(t, "SELECT b FROM t", corrected)
}

func TestStore_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))

	s := NewStore(path, zap.NewNop())
	assert.Equal(t, 0, s.Stats().Patterns)
}

func TestStore_PruneStale(t *testing.T) {
	s := NewStore("", zap.NewNop())

	s.RecordCorrection("SELECT a FROM t", "old", "SELECT b FROM t")
	time.Sleep(10 * time.Millisecond)
	cutoff := time.Now()
	s.RecordCorrection("SELECT x FROM t", "new", "SELECT y FROM t")

	removed := s.PruneStale(cutoff)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Stats().Patterns)

	_, ok := s.FindCorrection("SELECT a FROM t", "old")
	assert.False(t, ok)
	_, ok = s.FindCorrection("SELECT x FROM t", "new")
	assert.True(t, ok)
}
