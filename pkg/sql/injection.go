package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a SQL injection pattern detected in
// free-form input.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if a SQL injection pattern was detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Input       string // The input that failed the check
}

// CheckForInjection screens free-form text (typically the inbound natural
// language question) for SQL injection patterns before it is handed to the
// query generator. The generated SQL itself is validated structurally by
// Validator; this is an early screen on the raw input.
//
// Returns nil if no injection is detected.
func CheckForInjection(input string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(input)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		IsSQLi:      true,
		Fingerprint: string(fingerprint),
		Input:       input,
	}
}
