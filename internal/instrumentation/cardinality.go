package instrumentation

import "strings"

// Cardinality management helpers for metrics.
// These functions reduce high-cardinality label values to prevent metrics
// explosion in the gateway's own metrics backend.
//
// High cardinality in metrics can cause:
// - Increased memory usage in Prometheus/metrics backends
// - Slower query performance
// - Higher storage costs
//
// Always use these helpers when recording metrics with user identifiers.

// ExtractUserDomain extracts the domain part from an email address.
// This reduces cardinality by using the domain instead of the full email,
// so auth-outcome metrics can be sliced by organization without exposing
// individual user identities in a label.
//
// Example:
//
//	ExtractUserDomain("jane@example.com")  // "example.com"
//	ExtractUserDomain("invalid")            // "unknown"
//	ExtractUserDomain("")                   // "unknown"
func ExtractUserDomain(email string) string {
	if email == "" {
		return "unknown"
	}

	parts := strings.Split(email, "@")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}

	return "unknown"
}

// AuthOutcome constants for auth-outcome metrics (spec §4.1/C3).
const (
	AuthOutcomeSuccess = "success"
	AuthOutcomeFailure = "failure"
	AuthOutcomeDenied  = "denied"
)

// FederationSyncResult constants for federation-sync metrics (spec §4.4).
const (
	FederationSyncResultSuccess = "success"
	FederationSyncResultError   = "error"
)
