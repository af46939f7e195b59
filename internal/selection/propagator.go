package selection

import (
	"strings"

	"github.com/temirov/ctrlcv/internal/types"
)

// SetSelected returns a copy of selectionMap with path set to selected. When
// path names a directory every mapped descendant path is set as well. The
// input map is not modified. A path outside the tree is still recorded.
func SetSelected(selectionMap types.SelectionMap, tree types.Tree, path string, selected bool) types.SelectionMap {
	return setSelectedIndexed(selectionMap, Index(tree), path, selected)
}

func setSelectedIndexed(selectionMap types.SelectionMap, index map[string]*types.Node, path string, selected bool) types.SelectionMap {
	updated := CloneSelection(selectionMap)
	updated[path] = selected
	node, known := index[path]
	if !known || !node.IsDirectory() {
		return updated
	}
	descendantPrefix := path + types.PathSeparator
	for candidatePath := range updated {
		if strings.HasPrefix(candidatePath, descendantPrefix) {
			updated[candidatePath] = selected
		}
	}
	return updated
}

// DisplayStateOf derives the checkbox state for path at read time. A file
// shows its own flag. A directory shows selected when all descendant files
// are selected, indeterminate when some are, and unselected when none are.
// A directory without descendant files shows its own stored flag.
func DisplayStateOf(selectionMap types.SelectionMap, tree types.Tree, path string) types.DisplayState {
	node := findNode(tree, path)
	if node == nil {
		return stateFromFlag(selectionMap[path])
	}
	return displayStateOfNode(selectionMap, node)
}

// DisplayStates derives the state of every node of tree in one bottom-up
// pass.
func DisplayStates(selectionMap types.SelectionMap, tree types.Tree) map[string]types.DisplayState {
	states := make(map[string]types.DisplayState)
	for _, node := range tree {
		if node != nil {
			deriveStates(selectionMap, node, states)
		}
	}
	return states
}

func displayStateOfNode(selectionMap types.SelectionMap, node *types.Node) types.DisplayState {
	if !node.IsDirectory() {
		return stateFromFlag(selectionMap[node.Path])
	}
	total, selected := deriveStates(selectionMap, node, nil)
	return directoryState(selectionMap[node.Path], total, selected)
}

// deriveStates returns the total and selected file counts below node,
// recording each visited state in states when it is not nil.
func deriveStates(selectionMap types.SelectionMap, node *types.Node, states map[string]types.DisplayState) (total int, selected int) {
	if !node.IsDirectory() {
		flag := selectionMap[node.Path]
		if states != nil {
			states[node.Path] = stateFromFlag(flag)
		}
		if flag {
			return 1, 1
		}
		return 1, 0
	}
	for _, child := range node.Children {
		if child == nil {
			continue
		}
		childTotal, childSelected := deriveStates(selectionMap, child, states)
		total += childTotal
		selected += childSelected
	}
	if states != nil {
		states[node.Path] = directoryState(selectionMap[node.Path], total, selected)
	}
	return total, selected
}

func directoryState(stored bool, total int, selected int) types.DisplayState {
	switch {
	case total == 0:
		return stateFromFlag(stored)
	case selected == total:
		return types.DisplaySelected
	case selected > 0:
		return types.DisplayIndeterminate
	default:
		return types.DisplayUnselected
	}
}

func findNode(tree types.Tree, path string) *types.Node {
	var found *types.Node
	Walk(tree, func(node *types.Node) bool {
		if found != nil {
			return false
		}
		if node.Path == path {
			found = node
			return false
		}
		return node.IsDirectory() && strings.HasPrefix(path, node.Path+types.PathSeparator)
	})
	return found
}

func stateFromFlag(flag bool) types.DisplayState {
	if flag {
		return types.DisplaySelected
	}
	return types.DisplayUnselected
}

// SelectedFilePaths lists, in traversal order, the file paths that are
// selected and whose extension is not excluded.
func SelectedFilePaths(selectionMap types.SelectionMap, tree types.Tree, extensions types.ExtensionSet, classifier Classifier) []string {
	exclude := extensionLookup(extensions.Exclude)
	var paths []string
	Walk(tree, func(node *types.Node) bool {
		if node.IsDirectory() || !selectionMap[node.Path] {
			return true
		}
		if _, excluded := exclude[classifier.Classify(node.Name)]; excluded {
			return true
		}
		paths = append(paths, node.Path)
		return true
	})
	return paths
}

// EmptySelection returns a map with every node of the tree set to false.
func EmptySelection(tree types.Tree) types.SelectionMap {
	selectionMap := make(types.SelectionMap)
	Walk(tree, func(node *types.Node) bool {
		selectionMap[node.Path] = false
		return true
	})
	return selectionMap
}

// CloneSelection returns a copy of selectionMap.
func CloneSelection(selectionMap types.SelectionMap) types.SelectionMap {
	cloned := make(types.SelectionMap, len(selectionMap))
	for path, selected := range selectionMap {
		cloned[path] = selected
	}
	return cloned
}
