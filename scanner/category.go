package scanner

import (
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

var gameCategories = map[string]string{
	"exe":      "executable",
	"dll":      "executable",
	"so":       "executable",
	"pak":      "archive",
	"vpk":      "archive",
	"bundle":   "archive",
	"assets":   "data",
	"resource": "data",
	"bin":      "data",
	"dat":      "data",
	"json":     "text",
	"xml":      "text",
	"ini":      "text",
	"cfg":      "text",
	"txt":      "text",
	"lua":      "script",
	"py":       "script",
	"js":       "script",
}

// fileCategory derives an informational category from the extension only.
func fileCategory(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return "other"
	}
	if c, ok := gameCategories[ext]; ok {
		return c
	}
	if t := filetype.GetType(ext); t != filetype.Unknown && t.MIME.Type != "" {
		return t.MIME.Type
	}
	return "other"
}
