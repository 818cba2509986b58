package instrumentation

import "testing"

func TestExtractUserDomain(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "valid email",
			input:    "jane@giantswarm.io",
			expected: "giantswarm.io",
		},
		{
			name:     "valid email with subdomain",
			input:    "user@mail.example.com",
			expected: "mail.example.com",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "unknown",
		},
		{
			name:     "no @ symbol",
			input:    "invalid",
			expected: "unknown",
		},
		{
			name:     "@ at start",
			input:    "@domain.com",
			expected: "domain.com",
		},
		{
			name:     "@ at end",
			input:    "user@",
			expected: "unknown",
		},
		{
			name:     "multiple @ symbols",
			input:    "user@domain@example.com",
			expected: "unknown",
		},
		{
			name:     "simple username",
			input:    "admin",
			expected: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractUserDomain(tt.input)
			if result != tt.expected {
				t.Errorf("ExtractUserDomain(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestAuthOutcomeConstants(t *testing.T) {
	constants := []string{AuthOutcomeSuccess, AuthOutcomeFailure, AuthOutcomeDenied}
	seen := make(map[string]bool)
	for _, c := range constants {
		if c == "" {
			t.Error("AuthOutcome constant should not be empty")
		}
		if seen[c] {
			t.Errorf("duplicate AuthOutcome constant: %q", c)
		}
		seen[c] = true
	}
}

func TestFederationSyncResultConstants(t *testing.T) {
	if FederationSyncResultSuccess == FederationSyncResultError {
		t.Error("FederationSyncResultSuccess and FederationSyncResultError must differ")
	}
	if FederationSyncResultSuccess != "success" {
		t.Errorf("FederationSyncResultSuccess = %q, want %q", FederationSyncResultSuccess, "success")
	}
	if FederationSyncResultError != "error" {
		t.Errorf("FederationSyncResultError = %q, want %q", FederationSyncResultError, "error")
	}
}
