package selection_test

import (
	"testing"

	"github.com/temirov/ctrlcv/internal/selection"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name     string
		fileName string
		expected string
	}{
		{name: "no dot", fileName: "README", expected: ""},
		{name: "simple", fileName: "main.go", expected: ".go"},
		{name: "last dot wins", fileName: "a.tar.gz", expected: ".gz"},
		{name: "case preserved", fileName: "App.JS", expected: ".JS"},
		{name: "dotfile", fileName: ".gitignore", expected: ""},
		{name: "trailing dot", fileName: "notes.", expected: "."},
		{name: "dotfile with suffix", fileName: ".eslintrc.json", expected: ".json"},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			if actual := selection.Classify(testCase.fileName); actual != testCase.expected {
				t.Fatalf("Classify(%q) = %q, expected %q", testCase.fileName, actual, testCase.expected)
			}
		})
	}
}

func TestClassifierDotfilePolicy(t *testing.T) {
	suffixClassifier := selection.Classifier{Dotfiles: selection.DotfilePolicySuffix}
	if actual := suffixClassifier.Classify(".gitignore"); actual != ".gitignore" {
		t.Fatalf("expected .gitignore, got %q", actual)
	}
	if actual := suffixClassifier.Classify("README"); actual != "" {
		t.Fatalf("expected empty extension, got %q", actual)
	}
}

func TestParseDotfilePolicy(t *testing.T) {
	testCases := []struct {
		value       string
		expected    selection.DotfilePolicy
		expectError bool
	}{
		{value: "", expected: selection.DotfilePolicyEmpty},
		{value: "empty", expected: selection.DotfilePolicyEmpty},
		{value: " Suffix ", expected: selection.DotfilePolicySuffix},
		{value: "other", expectError: true},
	}
	for _, testCase := range testCases {
		policy, err := selection.ParseDotfilePolicy(testCase.value)
		if testCase.expectError {
			if err == nil {
				t.Fatalf("expected error for %q", testCase.value)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseDotfilePolicy(%q) error: %v", testCase.value, err)
		}
		if policy != testCase.expected {
			t.Fatalf("ParseDotfilePolicy(%q) = %q, expected %q", testCase.value, policy, testCase.expected)
		}
	}
}

func TestNormalizeExtension(t *testing.T) {
	testCases := map[string]string{
		"":      "",
		"  ":    "",
		"cfg":   ".cfg",
		".cfg":  ".cfg",
		" .md ": ".md",
	}
	for input, expected := range testCases {
		if actual := selection.NormalizeExtension(input); actual != expected {
			t.Fatalf("NormalizeExtension(%q) = %q, expected %q", input, actual, expected)
		}
	}
}
