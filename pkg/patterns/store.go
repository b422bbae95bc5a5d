package patterns

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pattern is one remembered failure and the correction that fixed it.
type Pattern struct {
	FailedSQL    string    `json:"failed_sql"`
	ErrorMessage string    `json:"error_message"`
	CorrectedSQL string    `json:"corrected_sql"`
	SuccessCount int       `json:"success_count"`
	FirstSeen    time.Time `json:"first_seen"`
	LastUsed     time.Time `json:"last_used"`
}

// Statistics summarizes the store.
type Statistics struct {
	Patterns       int `json:"patterns"`
	TotalSuccesses int `json:"total_successes"`
}

// Store remembers which corrections fixed which query failures, so a
// repeated failure can be repaired without another model round trip.
// Patterns are keyed by a normalized form of the failing SQL and error
// message: literals and numbers in the error are collapsed so that the
// same mistake against different values maps to one pattern.
type Store struct {
	path   string
	logger *zap.Logger

	mu       sync.Mutex
	patterns map[string]*Pattern
}

// NewStore loads patterns from path, or starts empty when the file is
// missing or corrupt. An empty path keeps the store purely in memory.
func NewStore(path string, logger *zap.Logger) *Store {
	s := &Store{
		path:     path,
		logger:   logger.Named("error-patterns"),
		patterns: make(map[string]*Pattern),
	}

	if path == "" {
		return s
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to read pattern file, starting empty", zap.Error(err))
		}
		return s
	}
	if err := json.Unmarshal(data, &s.patterns); err != nil {
		s.logger.Warn("Pattern file is corrupt, starting empty", zap.Error(err))
		s.patterns = make(map[string]*Pattern)
	}
	return s
}

// FindCorrection returns the remembered correction for this failure, if
// any. A hit bumps the pattern's usage bookkeeping.
func (s *Store) FindCorrection(failedSQL, errMsg string) (string, bool) {
	key := patternKey(failedSQL, errMsg)

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.patterns[key]
	if !ok {
		return "", false
	}
	p.SuccessCount++
	p.LastUsed = time.Now()
	s.persistLocked()
	return p.CorrectedSQL, true
}

// RecordCorrection stores a correction that was verified to work. A
// correction identical to the failing statement is ignored. Recording over
// an existing pattern replaces the correction and counts another success.
func (s *Store) RecordCorrection(failedSQL, errMsg, correctedSQL string) {
	if foldSQL(failedSQL) == foldSQL(correctedSQL) {
		return
	}
	key := patternKey(failedSQL, errMsg)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.patterns[key]; ok {
		p.CorrectedSQL = correctedSQL
		p.SuccessCount++
		p.LastUsed = now
	} else {
		s.patterns[key] = &Pattern{
			FailedSQL:    failedSQL,
			ErrorMessage: errMsg,
			CorrectedSQL: correctedSQL,
			SuccessCount: 1,
			FirstSeen:    now,
			LastUsed:     now,
		}
	}
	s.persistLocked()
}

// PruneStale drops patterns not used since the cutoff and returns how many
// were removed.
func (s *Store) PruneStale(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, p := range s.patterns {
		if p.LastUsed.Before(cutoff) {
			delete(s.patterns, key)
			removed++
		}
	}
	if removed > 0 {
		s.persistLocked()
	}
	return removed
}

// Stats reports pattern counts.
func (s *Store) Stats() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Statistics{Patterns: len(s.patterns)}
	for _, p := range s.patterns {
		out.TotalSuccesses += p.SuccessCount
	}
	return out
}

// persistLocked writes the pattern file. Caller must hold s.mu. Failures
// are logged, not returned: losing persistence degrades the store to
// memory-only rather than failing the request path.
func (s *Store) persistLocked() {
	if s.path == "" {
		return
	}
	data, err := json.MarshalIndent(s.patterns, "", "  ")
	if err != nil {
		s.logger.Warn("Failed to marshal patterns", zap.Error(err))
		return
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.logger.Warn("Failed to create pattern directory", zap.Error(err))
			return
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.logger.Warn("Failed to write pattern file", zap.Error(err))
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.logger.Warn("Failed to replace pattern file", zap.Error(err))
	}
}

var (
	singleQuoted = regexp.MustCompile(`'[^']*'`)
	doubleQuoted = regexp.MustCompile(`"[^"]*"`)
	bareNumber   = regexp.MustCompile(`\b\d+\b`)
)

// normalizeError collapses the variable parts of an error message so that
// the same failure against different identifiers or values shares a key.
func normalizeError(errMsg string) string {
	out := singleQuoted.ReplaceAllString(errMsg, "'*'")
	out = doubleQuoted.ReplaceAllString(out, `"*"`)
	out = bareNumber.ReplaceAllString(out, "*")
	return strings.TrimSpace(strings.ToLower(out))
}

func foldSQL(sqlText string) string {
	return strings.Join(strings.Fields(strings.ToLower(sqlText)), " ")
}

func patternKey(failedSQL, errMsg string) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s", foldSQL(failedSQL), normalizeError(errMsg)))
	return hex.EncodeToString(sum[:])
}
