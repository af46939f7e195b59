package utils

import (
	"mime"
	"net/http"
	"path"
)

// DetectMimeType returns the MIME type of a repository file, preferring the
// registered type of its extension and sniffing the content otherwise.
func DetectMimeType(filePath string, content []byte) string {
	if byExtension := mime.TypeByExtension(path.Ext(filePath)); byExtension != "" {
		return byExtension
	}
	if len(content) > sniffLength {
		content = content[:sniffLength]
	}
	return http.DetectContentType(content)
}
