package selection

import (
	"errors"
	"fmt"
	"sync"

	"github.com/temirov/ctrlcv/internal/types"
)

var (
	// ErrNoTree is returned by session operations that need an installed tree.
	ErrNoTree = errors.New("no repository tree loaded")
	// ErrUnknownPath reports a path that is not part of the loaded tree.
	ErrUnknownPath = errors.New("path is not in the repository tree")
)

// Generation identifies one tree load. A completed load installs unless a
// later generation has already installed its tree.
type Generation uint64

// Snapshot is an immutable view of a session.
type Snapshot struct {
	Repository string
	CommitHash string
	Generation Generation
	Tree       types.Tree
	Extensions types.ExtensionSet
	Selection  types.SelectionMap
}

// Session holds the live tree, rules, and selection of one repository.
type Session struct {
	mutex      sync.Mutex
	classifier Classifier
	issued     Generation
	installed  Generation
	repository string
	commitHash string
	tree       types.Tree
	index      map[string]*types.Node
	extensions types.ExtensionSet
	selection  types.SelectionMap
}

// NewSession creates an empty session that classifies with classifier.
func NewSession(classifier Classifier) *Session {
	return &Session{
		classifier: classifier,
		index:      map[string]*types.Node{},
		selection:  types.SelectionMap{},
	}
}

// Classifier returns the classifier used by the session.
func (session *Session) Classifier() Classifier {
	return session.classifier
}

// BeginLoad issues a new generation for a tree fetch that is about to start.
func (session *Session) BeginLoad() Generation {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.issued++
	return session.issued
}

// Install replaces the session tree with the listing fetched under
// generation. A completion that is not newer than the installed tree, or
// that was never issued, is dropped and Install returns false. A later load
// that is still pending or has failed does not block it. The selection is reset to all-false and the
// extension rules are reset unless preserveRules is set.
func (session *Session) Install(generation Generation, repository string, listing types.TreeListing, preserveRules bool) bool {
	tree := BuildTree(listing.Entries)
	session.mutex.Lock()
	defer session.mutex.Unlock()
	if generation <= session.installed || generation > session.issued {
		return false
	}
	session.installed = generation
	session.repository = repository
	session.commitHash = listing.CommitHash
	session.tree = tree
	session.index = Index(tree)
	session.selection = EmptySelection(tree)
	if !preserveRules {
		session.extensions = types.ExtensionSet{}
	}
	return true
}

// ToggleExtension cycles extension through the rule sets and recomputes the
// selection.
func (session *Session) ToggleExtension(extension string) (types.ExtensionSet, error) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	if session.installed == 0 {
		return types.ExtensionSet{}, ErrNoTree
	}
	session.applyExtensions(ToggleExtension(session.extensions, extension))
	return CloneExtensionSet(session.extensions), nil
}

// AddCustomExtension adds a typed extension to include or exclude and
// recomputes the selection.
func (session *Session) AddCustomExtension(extension string, toInclude bool) (types.ExtensionSet, error) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	if session.installed == 0 {
		return types.ExtensionSet{}, ErrNoTree
	}
	session.applyExtensions(AddCustomExtension(session.extensions, extension, toInclude))
	return CloneExtensionSet(session.extensions), nil
}

// SetExtensions replaces the rules and recomputes the selection.
func (session *Session) SetExtensions(extensions types.ExtensionSet) error {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	if session.installed == 0 {
		return ErrNoTree
	}
	session.applyExtensions(CloneExtensionSet(extensions))
	return nil
}

func (session *Session) applyExtensions(extensions types.ExtensionSet) {
	session.extensions = extensions
	session.selection = RecomputeWith(session.tree, extensions, session.classifier)
}

// SetSelected applies a direct toggle to path.
func (session *Session) SetSelected(path string, selected bool) error {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	if session.installed == 0 {
		return ErrNoTree
	}
	if _, known := session.index[path]; !known {
		return fmt.Errorf("%w: %q", ErrUnknownPath, path)
	}
	session.selection = setSelectedIndexed(session.selection, session.index, path, selected)
	return nil
}

// DisplayState derives the checkbox state of path.
func (session *Session) DisplayState(path string) (types.DisplayState, error) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	node, known := session.index[path]
	if !known {
		return types.DisplayUnselected, fmt.Errorf("%w: %q", ErrUnknownPath, path)
	}
	return displayStateOfNode(session.selection, node), nil
}

// SelectedPaths lists the files that would be aggregated.
func (session *Session) SelectedPaths() []string {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	return SelectedFilePaths(session.selection, session.tree, session.extensions, session.classifier)
}

// Snapshot returns a copy of the session state.
func (session *Session) Snapshot() (Snapshot, error) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	if session.installed == 0 {
		return Snapshot{}, ErrNoTree
	}
	return Snapshot{
		Repository: session.repository,
		CommitHash: session.commitHash,
		Generation: session.installed,
		Tree:       session.tree,
		Extensions: CloneExtensionSet(session.extensions),
		Selection:  CloneSelection(session.selection),
	}, nil
}
