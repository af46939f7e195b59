// Package selection turns provider listings into selection trees and decides
// which files end up in the aggregated document.
package selection

import (
	"github.com/temirov/ctrlcv/internal/types"
)

// BuildTree converts a provider listing into a tree of nodes. Entry order is
// preserved. A directory entry without children becomes a directory node with
// an empty child sequence.
func BuildTree(entries []types.ProviderEntry) types.Tree {
	return buildNodes(entries, "")
}

func buildNodes(entries []types.ProviderEntry, parentPath string) types.Tree {
	nodes := make(types.Tree, 0, len(entries))
	for _, entry := range entries {
		nodePath := JoinPath(parentPath, entry.Name)
		if entry.Kind == types.NodeTypeDirectory {
			nodes = append(nodes, &types.Node{
				Name:     entry.Name,
				Path:     nodePath,
				Kind:     types.KindDirectory,
				Children: buildNodes(entry.Children, nodePath),
			})
			continue
		}
		nodes = append(nodes, &types.Node{
			Name: entry.Name,
			Path: nodePath,
			Kind: types.KindFile,
			Size: entry.Size,
		})
	}
	return nodes
}

// JoinPath appends name to parentPath with the repository path separator.
func JoinPath(parentPath string, name string) string {
	if parentPath == "" {
		return name
	}
	return parentPath + types.PathSeparator + name
}

// Walk visits every node depth-first in tree order. Returning false from
// visit stops descent into that node's children.
func Walk(tree types.Tree, visit func(node *types.Node) bool) {
	for _, node := range tree {
		if node == nil {
			continue
		}
		if !visit(node) {
			continue
		}
		if node.IsDirectory() {
			Walk(node.Children, visit)
		}
	}
}

// Index maps every node path to its node.
func Index(tree types.Tree) map[string]*types.Node {
	index := make(map[string]*types.Node)
	Walk(tree, func(node *types.Node) bool {
		index[node.Path] = node
		return true
	})
	return index
}

// FilePaths returns every file path in traversal order.
func FilePaths(tree types.Tree) []string {
	var paths []string
	Walk(tree, func(node *types.Node) bool {
		if !node.IsDirectory() {
			paths = append(paths, node.Path)
		}
		return true
	})
	return paths
}

// CountNodes returns the number of files and directories in the tree.
func CountNodes(tree types.Tree) (files int, directories int) {
	Walk(tree, func(node *types.Node) bool {
		if node.IsDirectory() {
			directories++
		} else {
			files++
		}
		return true
	})
	return files, directories
}
