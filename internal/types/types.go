// Package types defines every cross‑package data structure used by the ctrlcv CLI.
package types

import "encoding/xml"

const (
	NodeTypeFile      = "file"
	NodeTypeDirectory = "directory"

	CommandTree    = "tree"
	CommandConvert = "convert"

	FormatRaw  = "raw"
	FormatJSON = "json"
	FormatXML  = "xml"

	// PathSeparator joins path segments relative to the repository root.
	PathSeparator = "/"
)

// NodeKind distinguishes files from directories.
type NodeKind int

const (
	KindFile NodeKind = iota
	KindDirectory
)

// String returns the wire name of the kind.
func (kind NodeKind) String() string {
	if kind == KindDirectory {
		return NodeTypeDirectory
	}
	return NodeTypeFile
}

// Node is one entry of the repository tree. Path is the identity key.
type Node struct {
	Name     string
	Path     string
	Kind     NodeKind
	Size     int64
	Children []*Node
}

// IsDirectory reports whether the node is a directory.
func (node *Node) IsDirectory() bool {
	return node != nil && node.Kind == KindDirectory
}

// Tree is the ordered sequence of top-level nodes.
type Tree []*Node

// ProviderEntry is one entry of a listing returned by a source-control provider.
// Children is nil when the provider did not expand the directory.
type ProviderEntry struct {
	Name     string          `json:"name"`
	Kind     string          `json:"kind"`
	Size     int64           `json:"size,omitempty"`
	Children []ProviderEntry `json:"children,omitempty"`
}

// TreeListing is a provider listing pinned to the commit it was read from.
type TreeListing struct {
	Entries    []ProviderEntry `json:"entries"`
	CommitHash string          `json:"commitHash"`
}

// ExtensionSet holds the include and exclude extension rules in insertion order.
type ExtensionSet struct {
	Include []string `json:"includeTypes" mapstructure:"include"`
	Exclude []string `json:"excludeTypes" mapstructure:"exclude"`
}

// SelectionMap maps every node path to its selected flag.
type SelectionMap map[string]bool

// DisplayState is the read-time checkbox state of a node.
type DisplayState int

const (
	DisplayUnselected DisplayState = iota
	DisplayIndeterminate
	DisplaySelected
)

// String returns a short name for the display state.
func (state DisplayState) String() string {
	switch state {
	case DisplaySelected:
		return "selected"
	case DisplayIndeterminate:
		return "indeterminate"
	default:
		return "unselected"
	}
}

// FileContent pairs a repository path with the text fetched for it.
type FileContent struct {
	Path    string `json:"path" xml:"path"`
	Content string `json:"content" xml:"content"`
}

// TreeOutputNode represents a node of a rendered selection tree.
type TreeOutputNode struct {
	XMLName   xml.Name          `json:"-" xml:"node"`
	Path      string            `json:"path" xml:"path"`
	Name      string            `json:"name" xml:"name"`
	Type      string            `json:"type" xml:"type"`
	Extension string            `json:"extension,omitempty" xml:"extension,omitempty"`
	Size      string            `json:"size,omitempty" xml:"size,omitempty"`
	State     string            `json:"state" xml:"state"`
	Children  []*TreeOutputNode `json:"children,omitempty" xml:"children>node,omitempty"`
}

// ConvertOutput is the structured form of a convert result.
type ConvertOutput struct {
	XMLName    xml.Name     `json:"-" xml:"conversion"`
	Repository string       `json:"repository" xml:"repository"`
	CommitHash string       `json:"commitHash" xml:"commitHash"`
	Files      []string     `json:"files" xml:"files>file"`
	Skipped    []string     `json:"skipped,omitempty" xml:"skipped>file,omitempty"`
	Extensions ExtensionSet `json:"fileTypes" xml:"-"`
	Content    string       `json:"content" xml:"content"`
	TotalSize  string       `json:"totalSize" xml:"totalSize"`
	Tokens     int          `json:"tokens,omitempty" xml:"tokens,omitempty"`
	Model      string       `json:"model,omitempty" xml:"model,omitempty"`
}
