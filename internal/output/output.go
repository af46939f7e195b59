// Package output renders selection trees and aggregated documents.
package output

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/temirov/ctrlcv/internal/selection"
	"github.com/temirov/ctrlcv/internal/types"
	"github.com/temirov/ctrlcv/internal/utils"
)

const (
	indentPrefix = ""
	indentSpacer = "  "

	xmlHeader = xml.Header

	treeBranchConnector = "├── "
	treeLastConnector   = "└── "
	treeBranchPadding   = "│   "
	treeLastPadding     = "    "

	markerSelected      = "[x]"
	markerIndeterminate = "[-]"
	markerUnselected    = "[ ]"

	extensionsLabel = "File types: "
	noExtensionName = "(none)"

	invalidFormatMessage = "Invalid format value '%s'"
)

var (
	selectedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	indeterminateStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	directoryStyle     = lipgloss.NewStyle().Bold(true)
)

// TreeView bundles what the tree renderers need.
type TreeView struct {
	Tree       types.Tree
	Selection  types.SelectionMap
	Classifier selection.Classifier
}

// BuildTreeOutput converts the view into output nodes carrying derived
// display states.
func BuildTreeOutput(view TreeView) []*types.TreeOutputNode {
	states := selection.DisplayStates(view.Selection, view.Tree)
	return buildOutputNodes(view, states, view.Tree)
}

func buildOutputNodes(view TreeView, states map[string]types.DisplayState, nodes types.Tree) []*types.TreeOutputNode {
	result := make([]*types.TreeOutputNode, 0, len(nodes))
	for _, node := range nodes {
		if node == nil {
			continue
		}
		outputNode := &types.TreeOutputNode{
			Path:  node.Path,
			Name:  node.Name,
			Type:  node.Kind.String(),
			State: states[node.Path].String(),
		}
		if node.IsDirectory() {
			outputNode.Children = buildOutputNodes(view, states, node.Children)
		} else {
			outputNode.Extension = view.Classifier.Classify(node.Name)
			outputNode.Size = utils.FormatFileSize(node.Size)
		}
		result = append(result, outputNode)
	}
	return result
}

// WriteTreeRaw renders the nodes as an indented tree with checkbox markers.
// Styling is applied when styled is set.
func WriteTreeRaw(writer io.Writer, nodes []*types.TreeOutputNode, extensions []string, styled bool) {
	for index, node := range nodes {
		renderTreeNode(writer, node, "", index == len(nodes)-1, styled)
	}
	if len(extensions) > 0 {
		fmt.Fprintln(writer)
		fmt.Fprintln(writer, extensionsLabel+formatExtensions(extensions))
	}
}

func renderTreeNode(writer io.Writer, node *types.TreeOutputNode, prefix string, isLast bool, styled bool) {
	if node == nil {
		return
	}
	connector := treeBranchConnector
	childPrefix := prefix + treeBranchPadding
	if isLast {
		connector = treeLastConnector
		childPrefix = prefix + treeLastPadding
	}
	label := node.Name
	if node.Type == types.NodeTypeDirectory {
		label += types.PathSeparator
		if styled {
			label = directoryStyle.Render(label)
		}
	} else if node.Size != "" {
		label = fmt.Sprintf("%s (%s)", label, node.Size)
	}
	fmt.Fprintf(writer, "%s%s%s %s\n", prefix, connector, stateMarker(node.State, styled), label)
	for index, child := range node.Children {
		renderTreeNode(writer, child, childPrefix, index == len(node.Children)-1, styled)
	}
}

func stateMarker(state string, styled bool) string {
	switch state {
	case types.DisplaySelected.String():
		if styled {
			return selectedStyle.Render(markerSelected)
		}
		return markerSelected
	case types.DisplayIndeterminate.String():
		if styled {
			return indeterminateStyle.Render(markerIndeterminate)
		}
		return markerIndeterminate
	default:
		return markerUnselected
	}
}

func formatExtensions(extensions []string) string {
	labels := make([]string, 0, len(extensions))
	for _, extension := range extensions {
		if extension == "" {
			labels = append(labels, noExtensionName)
			continue
		}
		labels = append(labels, extension)
	}
	return strings.Join(labels, " ")
}

// RenderTreeJSON marshals the nodes as an indented JSON array.
func RenderTreeJSON(nodes []*types.TreeOutputNode) (string, error) {
	encoded, jsonEncodeError := json.MarshalIndent(nodes, indentPrefix, indentSpacer)
	return string(encoded), jsonEncodeError
}

// RenderConvert renders a convert result in the requested format. The raw
// format is the aggregated document itself.
func RenderConvert(format string, result types.ConvertOutput) (string, error) {
	switch format {
	case types.FormatRaw:
		return result.Content, nil
	case types.FormatJSON:
		encoded, jsonEncodeError := json.MarshalIndent(result, indentPrefix, indentSpacer)
		return string(encoded), jsonEncodeError
	case types.FormatXML:
		encoded, xmlMarshalError := xml.MarshalIndent(result, indentPrefix, indentSpacer)
		if xmlMarshalError != nil {
			return "", xmlMarshalError
		}
		return xmlHeader + string(encoded), nil
	default:
		return "", fmt.Errorf(invalidFormatMessage, format)
	}
}

type treeDocument struct {
	XMLName xml.Name                `xml:"tree"`
	Nodes   []*types.TreeOutputNode `xml:"node"`
}

// RenderTreeXML marshals the nodes under a tree root element.
func RenderTreeXML(nodes []*types.TreeOutputNode) (string, error) {
	encoded, xmlMarshalError := xml.MarshalIndent(treeDocument{Nodes: nodes}, indentPrefix, indentSpacer)
	if xmlMarshalError != nil {
		return "", xmlMarshalError
	}
	return xmlHeader + string(encoded), nil
}
