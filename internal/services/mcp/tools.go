package mcp

import "github.com/temirov/ctrlcv/internal/types"

type (
	// LoadRepositoryInput names the repository to load into the session.
	LoadRepositoryInput struct {
		Repository    string `json:"repository" jsonschema:"GitHub repository as owner/repo or URL, optionally with /tree/<ref>"`
		Commit        string `json:"commit,omitempty" jsonschema:"Commit, branch, or tag to pin (default: the default branch head)"`
		PreserveRules bool   `json:"preserveRules,omitempty" jsonschema:"Keep the current file type rules (default: false)"`
	}

	// LoadRepositoryOutput describes the installed tree.
	LoadRepositoryOutput struct {
		Repository     string   `json:"repository"`
		CommitHash     string   `json:"commitHash"`
		Files          int      `json:"files"`
		Directories    int      `json:"directories"`
		AvailableTypes []string `json:"availableTypes"`
		Superseded     bool     `json:"superseded,omitempty"`
	}

	// ToggleExtensionInput names an extension to cycle through the rules.
	ToggleExtensionInput struct {
		Extension string `json:"extension" jsonschema:"Extension such as .go; an empty string means files without extension"`
	}

	// AddExtensionInput adds a typed extension to a rule set.
	AddExtensionInput struct {
		Extension string `json:"extension" jsonschema:"Extension with or without leading dot"`
		Include   bool   `json:"include" jsonschema:"true adds to include, false adds to exclude"`
	}

	// SetFileTypesInput replaces both rule sets.
	SetFileTypesInput struct {
		Include []string `json:"include,omitempty" jsonschema:"Extensions to include"`
		Exclude []string `json:"exclude,omitempty" jsonschema:"Extensions to exclude"`
	}

	// FileTypesOutput reports the rules after a change.
	FileTypesOutput struct {
		FileTypes     types.ExtensionSet `json:"fileTypes"`
		SelectedFiles []string           `json:"selectedFiles"`
	}

	// SetSelectedInput toggles one path.
	SetSelectedInput struct {
		Path     string `json:"path" jsonschema:"Repository-relative path of a file or directory"`
		Selected bool   `json:"selected" jsonschema:"Desired selection state"`
	}

	// SetSelectedOutput reports the resulting display state of the path.
	SetSelectedOutput struct {
		Path          string   `json:"path"`
		State         string   `json:"state"`
		SelectedFiles []string `json:"selectedFiles"`
	}

	// SelectionTreeInput picks the tree rendering.
	SelectionTreeInput struct {
		Format string `json:"format,omitempty" jsonschema:"raw or json (default: raw)"`
	}

	// SelectionTreeOutput holds the rendered tree.
	SelectionTreeOutput struct {
		Repository string `json:"repository"`
		CommitHash string `json:"commitHash"`
		Tree       string `json:"tree"`
	}

	// AggregateInput requests the aggregated document of the selection.
	AggregateInput struct {
		Tokens bool   `json:"tokens,omitempty" jsonschema:"Estimate the token count of the document"`
		Model  string `json:"model,omitempty" jsonschema:"Model used for token counting"`
	}

	// AggregateOutput holds the document and its metadata.
	AggregateOutput struct {
		Repository string   `json:"repository"`
		CommitHash string   `json:"commitHash"`
		Files      []string `json:"files"`
		Skipped    []string `json:"skipped,omitempty"`
		Content    string   `json:"content"`
		TotalSize  string   `json:"totalSize"`
		Tokens     int      `json:"tokens,omitempty"`
		Model      string   `json:"model,omitempty"`
	}
)
