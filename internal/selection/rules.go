package selection

import (
	"github.com/temirov/ctrlcv/internal/types"
)

// Recompute derives a fresh selection map from the extension rules using
// DefaultClassifier. See RecomputeWith.
func Recompute(tree types.Tree, extensions types.ExtensionSet) types.SelectionMap {
	return RecomputeWith(tree, extensions, DefaultClassifier)
}

// RecomputeWith derives a fresh selection map from the extension rules.
// A file is selected when the include set is empty or contains its extension,
// and the exclude set does not contain it. A directory is selected when at
// least one descendant file is selected. Prior overrides are discarded.
func RecomputeWith(tree types.Tree, extensions types.ExtensionSet, classifier Classifier) types.SelectionMap {
	selectionMap := make(types.SelectionMap)
	include := extensionLookup(extensions.Include)
	exclude := extensionLookup(extensions.Exclude)
	for _, node := range tree {
		recomputeNode(node, include, exclude, classifier, selectionMap)
	}
	return selectionMap
}

func recomputeNode(node *types.Node, include map[string]struct{}, exclude map[string]struct{}, classifier Classifier, selectionMap types.SelectionMap) bool {
	if node == nil {
		return false
	}
	if !node.IsDirectory() {
		selected := fileMatchesRules(classifier.Classify(node.Name), include, exclude)
		selectionMap[node.Path] = selected
		return selected
	}
	anySelected := false
	for _, child := range node.Children {
		if recomputeNode(child, include, exclude, classifier, selectionMap) {
			anySelected = true
		}
	}
	selectionMap[node.Path] = anySelected
	return anySelected
}

func fileMatchesRules(extension string, include map[string]struct{}, exclude map[string]struct{}) bool {
	if _, excluded := exclude[extension]; excluded {
		return false
	}
	if len(include) == 0 {
		return true
	}
	_, included := include[extension]
	return included
}

// ToggleExtension cycles extension through include, exclude, and neither.
// An extension in neither set moves to include; one in include moves to
// exclude; one in exclude is removed from both. The input is not modified.
func ToggleExtension(extensions types.ExtensionSet, extension string) types.ExtensionSet {
	switch {
	case containsExtension(extensions.Include, extension):
		return types.ExtensionSet{
			Include: removeExtension(extensions.Include, extension),
			Exclude: appendExtension(removeExtension(extensions.Exclude, extension), extension),
		}
	case containsExtension(extensions.Exclude, extension):
		return types.ExtensionSet{
			Include: removeExtension(extensions.Include, extension),
			Exclude: removeExtension(extensions.Exclude, extension),
		}
	default:
		return types.ExtensionSet{
			Include: appendExtension(cloneExtensions(extensions.Include), extension),
			Exclude: cloneExtensions(extensions.Exclude),
		}
	}
}

// AddCustomExtension places a user-typed extension into include or exclude
// and removes it from the other side. A missing leading dot is added and an
// empty value leaves the set unchanged.
func AddCustomExtension(extensions types.ExtensionSet, extension string, toInclude bool) types.ExtensionSet {
	normalized := NormalizeExtension(extension)
	if normalized == "" {
		return CloneExtensionSet(extensions)
	}
	if toInclude {
		return types.ExtensionSet{
			Include: appendExtension(removeExtension(extensions.Include, normalized), normalized),
			Exclude: removeExtension(extensions.Exclude, normalized),
		}
	}
	return types.ExtensionSet{
		Include: removeExtension(extensions.Include, normalized),
		Exclude: appendExtension(removeExtension(extensions.Exclude, normalized), normalized),
	}
}

// NewExtensionSet builds a set from raw include and exclude lists,
// normalizing and deduplicating each side while keeping first occurrences.
func NewExtensionSet(include []string, exclude []string) types.ExtensionSet {
	return types.ExtensionSet{
		Include: normalizeExtensions(include),
		Exclude: normalizeExtensions(exclude),
	}
}

// CloneExtensionSet returns a deep copy of extensions.
func CloneExtensionSet(extensions types.ExtensionSet) types.ExtensionSet {
	return types.ExtensionSet{
		Include: cloneExtensions(extensions.Include),
		Exclude: cloneExtensions(extensions.Exclude),
	}
}

// IsExcluded reports whether extension is vetoed by the exclude set.
func IsExcluded(extensions types.ExtensionSet, extension string) bool {
	return containsExtension(extensions.Exclude, extension)
}

// AvailableExtensions lists the distinct file extensions of the tree in
// traversal order of first appearance.
func AvailableExtensions(tree types.Tree, classifier Classifier) []string {
	seen := make(map[string]struct{})
	var extensions []string
	Walk(tree, func(node *types.Node) bool {
		if node.IsDirectory() {
			return true
		}
		extension := classifier.Classify(node.Name)
		if _, ok := seen[extension]; ok {
			return true
		}
		seen[extension] = struct{}{}
		extensions = append(extensions, extension)
		return true
	})
	return extensions
}

func normalizeExtensions(extensions []string) []string {
	var result []string
	for _, extension := range extensions {
		normalized := NormalizeExtension(extension)
		if normalized == "" || containsExtension(result, normalized) {
			continue
		}
		result = append(result, normalized)
	}
	return result
}

func extensionLookup(extensions []string) map[string]struct{} {
	lookup := make(map[string]struct{}, len(extensions))
	for _, extension := range extensions {
		lookup[extension] = struct{}{}
	}
	return lookup
}

func containsExtension(extensions []string, extension string) bool {
	for _, candidate := range extensions {
		if candidate == extension {
			return true
		}
	}
	return false
}

func removeExtension(extensions []string, extension string) []string {
	result := make([]string, 0, len(extensions))
	for _, candidate := range extensions {
		if candidate != extension {
			result = append(result, candidate)
		}
	}
	return result
}

func appendExtension(extensions []string, extension string) []string {
	if containsExtension(extensions, extension) {
		return extensions
	}
	return append(extensions, extension)
}

func cloneExtensions(extensions []string) []string {
	return append([]string{}, extensions...)
}
