package utils_test

import (
	"bytes"
	"slices"
	"testing"

	"github.com/temirov/ctrlcv/internal/utils"
)

// TestDeduplicatePatterns verifies order-preserving removal of duplicates.
func TestDeduplicatePatterns(testingInstance *testing.T) {
	testCases := []struct {
		testName string
		input    []string
		expected []string
	}{
		{testName: "no duplicates", input: []string{".go", ".md"}, expected: []string{".go", ".md"}},
		{testName: "duplicates keep first", input: []string{".go", ".md", ".go"}, expected: []string{".go", ".md"}},
		{testName: "empty input", input: nil, expected: []string{}},
	}
	for index, testCase := range testCases {
		actual := utils.DeduplicatePatterns(testCase.input)
		if !slices.Equal(actual, testCase.expected) {
			testingInstance.Errorf("case %d (%s): expected %v, got %v", index, testCase.testName, testCase.expected, actual)
		}
	}
}

// TestContainsString verifies slice membership checks.
func TestContainsString(testingInstance *testing.T) {
	values := []string{"tree", "convert"}
	if !utils.ContainsString(values, "tree") {
		testingInstance.Errorf("expected tree to be found")
	}
	if utils.ContainsString(values, "serve") {
		testingInstance.Errorf("expected serve to be absent")
	}
}

// TestSplitCommaSeparated verifies flattening of comma separated flag values.
func TestSplitCommaSeparated(testingInstance *testing.T) {
	actual := utils.SplitCommaSeparated([]string{"py,js", " md ", "", ",,go"})
	expected := []string{"py", "js", "md", "go"}
	if !slices.Equal(actual, expected) {
		testingInstance.Errorf("expected %v, got %v", expected, actual)
	}
}

// TestIsBinary verifies detection of binary data in byte slices.
func TestIsBinary(testingInstance *testing.T) {
	cutRune := append(bytes.Repeat([]byte("a"), 7999), []byte("é")...)
	testCases := []struct {
		testName string
		data     []byte
		expected bool
	}{
		{testName: "utf8 text", data: []byte("hello"), expected: false},
		{testName: "null byte", data: []byte{0x00, 0x01}, expected: true},
		{testName: "invalid utf8", data: []byte{0xff}, expected: true},
		{testName: "empty slice", data: []byte{}, expected: false},
		{testName: "rune cut by sniff window", data: cutRune, expected: false},
		{testName: "null byte beyond sniff window", data: append(bytes.Repeat([]byte("a"), 8000), 0x00), expected: false},
	}
	for index, testCase := range testCases {
		actual := utils.IsBinary(testCase.data)
		if actual != testCase.expected {
			testingInstance.Errorf("case %d (%s): expected %t, got %t", index, testCase.testName, testCase.expected, actual)
		}
	}
}
