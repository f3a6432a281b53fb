package constants

import "strings"

// FileKind is the declared kind of an uploaded source document.
type FileKind string

const (
	PDF  FileKind = "PDF"
	PPTX FileKind = "PPTX"
)

// AllowedExtensions maps the extensions accepted for upload to their document kind.
var AllowedExtensions = map[string]FileKind{
	"pdf":  PDF,
	"pptx": PPTX,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// KindForExt returns the document kind for ext, or false when it is not supported.
func KindForExt(ext string) (FileKind, bool) {
	k, ok := AllowedExtensions[NormalizeExt(ext)]
	return k, ok
}
