package output

import (
	"strings"

	"github.com/temirov/ctrlcv/internal/selection"
	"github.com/temirov/ctrlcv/internal/types"
)

const (
	fileHeaderPrefix    = "File: "
	fileHeaderSuffix    = "\n\n"
	fileBlockTerminator = "\n\n"
	fileBlockSeparator  = "\n"
)

// Aggregate concatenates the file contents into one document, classifying
// with selection.DefaultClassifier. See AggregateWith.
func Aggregate(files []types.FileContent, extensions types.ExtensionSet) string {
	return AggregateWith(files, extensions, selection.DefaultClassifier)
}

// AggregateWith emits "File: <path>\n\n<content>\n\n" for every file in input
// order, joined by a single newline. Files whose extension is excluded are
// dropped. Empty input yields an empty string.
func AggregateWith(files []types.FileContent, extensions types.ExtensionSet, classifier selection.Classifier) string {
	blocks := make([]string, 0, len(files))
	for _, file := range files {
		if selection.IsExcluded(extensions, classifier.Classify(baseName(file.Path))) {
			continue
		}
		blocks = append(blocks, formatFileBlock(file))
	}
	return strings.Join(blocks, fileBlockSeparator)
}

func formatFileBlock(file types.FileContent) string {
	var builder strings.Builder
	builder.Grow(len(fileHeaderPrefix) + len(file.Path) + len(fileHeaderSuffix) + len(file.Content) + len(fileBlockTerminator))
	builder.WriteString(fileHeaderPrefix)
	builder.WriteString(file.Path)
	builder.WriteString(fileHeaderSuffix)
	builder.WriteString(file.Content)
	builder.WriteString(fileBlockTerminator)
	return builder.String()
}

func baseName(path string) string {
	if index := strings.LastIndex(path, types.PathSeparator); index >= 0 {
		return path[index+1:]
	}
	return path
}
