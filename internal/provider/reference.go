package provider

import (
	"fmt"
	"strings"
)

const (
	githubHost         = "github.com"
	gitSuffix          = ".git"
	treeSegment        = "tree"
	referenceSeparator = "/"
)

var schemePrefixes = []string{"git+", "https://", "http://", "git://", "github:"}

// Reference names a repository and an optional branch or tag.
type Reference struct {
	Owner      string
	Repository string
	Ref        string
}

// Identifier returns "owner/repository".
func (reference Reference) Identifier() string {
	return reference.Owner + referenceSeparator + reference.Repository
}

func (reference Reference) String() string {
	if reference.Ref == "" {
		return reference.Identifier()
	}
	return reference.Identifier() + "@" + reference.Ref
}

// ParseReference accepts "owner/repo", "github.com/owner/repo",
// "https://github.com/owner/repo(.git)" and ".../tree/<ref>" forms.
func ParseReference(raw string) (Reference, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Reference{}, fmt.Errorf("%w: empty input", ErrInvalidRepositoryReference)
	}
	for _, prefix := range schemePrefixes {
		trimmed = strings.TrimPrefix(trimmed, prefix)
	}
	trimmed = strings.TrimPrefix(trimmed, "www.")
	segments := strings.Split(strings.Trim(trimmed, referenceSeparator), referenceSeparator)
	if strings.Contains(segments[0], ".") {
		if !strings.EqualFold(segments[0], githubHost) {
			return Reference{}, fmt.Errorf("%w: unsupported host in %q", ErrInvalidRepositoryReference, raw)
		}
		segments = segments[1:]
	}
	if len(segments) < 2 {
		return Reference{}, fmt.Errorf("%w: %q", ErrInvalidRepositoryReference, raw)
	}
	owner := segments[0]
	repository := strings.TrimSuffix(segments[1], gitSuffix)
	if !validSegment(owner) || !validSegment(repository) {
		return Reference{}, fmt.Errorf("%w: %q", ErrInvalidRepositoryReference, raw)
	}
	reference := Reference{Owner: owner, Repository: repository}
	remainder := segments[2:]
	switch {
	case len(remainder) == 0:
	case remainder[0] == treeSegment && len(remainder) > 1:
		reference.Ref = strings.Join(remainder[1:], referenceSeparator)
	default:
		return Reference{}, fmt.Errorf("%w: unexpected path in %q", ErrInvalidRepositoryReference, raw)
	}
	return reference, nil
}

func validSegment(segment string) bool {
	if segment == "" || segment == "." || segment == ".." {
		return false
	}
	for _, character := range segment {
		switch {
		case character >= 'a' && character <= 'z':
		case character >= 'A' && character <= 'Z':
		case character >= '0' && character <= '9':
		case character == '-' || character == '_' || character == '.':
		default:
			return false
		}
	}
	return true
}
