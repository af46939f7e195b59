package selection

import (
	"fmt"
	"strings"
)

const extensionSeparator = "."

// DotfilePolicy decides how names whose only dot is the leading one are classified.
type DotfilePolicy string

const (
	// DotfilePolicyEmpty classifies ".gitignore" as having no extension.
	DotfilePolicyEmpty DotfilePolicy = "empty"
	// DotfilePolicySuffix classifies ".gitignore" as ".gitignore".
	DotfilePolicySuffix DotfilePolicy = "suffix"
)

// ParseDotfilePolicy converts a configuration value into a DotfilePolicy.
// An empty value selects DotfilePolicyEmpty.
func ParseDotfilePolicy(value string) (DotfilePolicy, error) {
	switch DotfilePolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", DotfilePolicyEmpty:
		return DotfilePolicyEmpty, nil
	case DotfilePolicySuffix:
		return DotfilePolicySuffix, nil
	default:
		return "", fmt.Errorf("unsupported dotfile policy %q", value)
	}
}

// Classifier derives a file type from a file name.
type Classifier struct {
	Dotfiles DotfilePolicy
}

// DefaultClassifier treats leading-dot-only names as extensionless.
var DefaultClassifier = Classifier{Dotfiles: DotfilePolicyEmpty}

// Classify returns "." plus the text after the last dot of name, or "" when
// name has no dot. Case is preserved.
func (classifier Classifier) Classify(name string) string {
	separatorIndex := strings.LastIndex(name, extensionSeparator)
	if separatorIndex < 0 {
		return ""
	}
	if separatorIndex == 0 && classifier.Dotfiles != DotfilePolicySuffix {
		return ""
	}
	return name[separatorIndex:]
}

// Classify applies DefaultClassifier to name.
func Classify(name string) string {
	return DefaultClassifier.Classify(name)
}

// NormalizeExtension trims whitespace and adds a missing leading dot.
// An empty input stays empty.
func NormalizeExtension(extension string) string {
	trimmed := strings.TrimSpace(extension)
	if trimmed == "" || strings.HasPrefix(trimmed, extensionSeparator) {
		return trimmed
	}
	return extensionSeparator + trimmed
}
