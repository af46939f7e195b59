package github

import (
	"strings"

	"github.com/temirov/ctrlcv/internal/types"
)

type pendingEntry struct {
	name     string
	kind     string
	size     int64
	expanded bool
	children []*pendingEntry
}

// nestEntries turns the flat recursive listing into nested entries, keeping
// the provider's order among siblings. Directories beyond maxDepth, and
// childless directories of a truncated listing, are left unexpanded.
func nestEntries(flat []treeEntryPayload, truncated bool, maxDepth int) []types.ProviderEntry {
	var roots []*pendingEntry
	directories := make(map[string]*pendingEntry)

	var ensureDirectory func(path string) *pendingEntry
	attach := func(path string, entry *pendingEntry) {
		parentPath := parentOf(path)
		if parentPath == "" {
			roots = append(roots, entry)
			return
		}
		parent := ensureDirectory(parentPath)
		parent.children = append(parent.children, entry)
	}
	ensureDirectory = func(path string) *pendingEntry {
		if existing, found := directories[path]; found {
			return existing
		}
		directory := &pendingEntry{name: baseOf(path), kind: types.NodeTypeDirectory, expanded: true}
		directories[path] = directory
		attach(path, directory)
		return directory
	}

	for _, flatEntry := range flat {
		path := strings.Trim(flatEntry.Path, types.PathSeparator)
		if path == "" {
			continue
		}
		depth := strings.Count(path, types.PathSeparator) + 1
		if maxDepth > 0 && depth > maxDepth {
			continue
		}
		switch flatEntry.Type {
		case entryTypeTree:
			directory := ensureDirectory(path)
			directory.expanded = maxDepth == 0 || depth < maxDepth
		case entryTypeBlob:
			attach(path, &pendingEntry{name: baseOf(path), kind: types.NodeTypeFile, size: flatEntry.Size})
		}
	}
	return convertPending(roots, truncated)
}

func convertPending(pending []*pendingEntry, truncated bool) []types.ProviderEntry {
	entries := make([]types.ProviderEntry, 0, len(pending))
	for _, item := range pending {
		entry := types.ProviderEntry{Name: item.name, Kind: item.kind, Size: item.size}
		if item.kind == types.NodeTypeDirectory && item.expanded && !(truncated && len(item.children) == 0) {
			entry.Children = convertPending(item.children, truncated)
		}
		entries = append(entries, entry)
	}
	return entries
}

func parentOf(path string) string {
	if index := strings.LastIndex(path, types.PathSeparator); index >= 0 {
		return path[:index]
	}
	return ""
}

func baseOf(path string) string {
	if index := strings.LastIndex(path, types.PathSeparator); index >= 0 {
		return path[index+1:]
	}
	return path
}
