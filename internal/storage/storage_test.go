package storage

import (
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty string", input: "", expected: "unnamed"},
		{name: "simple filename", input: "solution.zip", expected: "solution.zip"},
		{name: "uppercase to lowercase", input: "SOLUTION.ZIP", expected: "solution.zip"},
		{name: "spaces replaced with underscore", input: "my solution.zip", expected: "my_solution.zip"},
		{name: "multiple spaces collapsed", input: "my   solution.zip", expected: "my_solution.zip"},
		{name: "special characters replaced", input: "sol@#$%ution.zip", expected: "sol_ution.zip"},
		{name: "leading underscore trimmed", input: "_solution.zip", expected: "solution.zip"},
		{name: "multiple underscores collapsed", input: "sol___ution.zip", expected: "sol_ution.zip"},
		{name: "dashes preserved", input: "my-solution.zip", expected: "my-solution.zip"},
		{name: "dots preserved", input: "solution.backup.zip", expected: "solution.backup.zip"},
		{name: "all special chars becomes unnamed", input: "@#$%^&*()", expected: "unnamed"},
		{name: "very long filename truncated", input: strings.Repeat("a", 300), expected: strings.Repeat("a", 200)},
		{name: "newlines replaced", input: "sol\nution.zip", expected: "sol_ution.zip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestArtifactKey(t *testing.T) {
	key := ArtifactKey("course-1", "group-2", "my solution.zip")

	if !strings.HasPrefix(key, "course-1/group-2/") {
		t.Errorf("ArtifactKey() prefix = %q, want course-1/group-2/", key)
	}
	if !strings.HasSuffix(key, "-my_solution.zip") {
		t.Errorf("ArtifactKey() should end with -my_solution.zip, got %q", key)
	}
}

func TestArtifactKeyUniquePerCall(t *testing.T) {
	key1 := ArtifactKey("course", "group", "file.zip")
	key2 := ArtifactKey("course", "group", "file.zip")

	if key1 == key2 {
		t.Error("ArtifactKey() should return unique keys for each call")
	}
}

func TestServiceEnabled(t *testing.T) {
	s := &Service{}
	if s.Enabled() {
		t.Error("Service without a client should be disabled")
	}
}
