package runner

import (
	"path/filepath"
	"regexp"
	"strings"
)

// ProgressObserver turns one line of tool output into a progress hint. It
// keeps the locale-dependent parsing away from process management.
type ProgressObserver interface {
	// ObserveLine returns the file the tool is working on, if the line names one.
	ObserveLine(line string) (file string, ok bool)
}

// CompactOutputObserver understands compact.exe's verbose listing:
//
//	Compressing files in C:\Games\Foo\
//
//	data.pak           1048576 :     524288 = 2.0 to 1 [OK]
//
// Lines with a path separator and an extension are also accepted as file
// names. That fallback is best-effort: banner or help text that happens to
// contain a path can be misread as a file, so counts derived from it are
// never treated as authoritative.
type CompactOutputObserver struct {
	dir string
}

var (
	dirHeaderRe = regexp.MustCompile(`(?i)^\s*(?:compressing|uncompressing|listing)\s+files\s+in\s+(.+?)\s*$`)
	fileLineRe  = regexp.MustCompile(`^\s*(\S.*?\.[A-Za-z0-9]{1,8})\s+\d[\d,.\s]*:\s*\d`)
	extRe       = regexp.MustCompile(`\.[A-Za-z0-9]{1,8}$`)
	bannerRe    = regexp.MustCompile(`(?i)^\s*(of\s+\d|total|\d+\s+(files?|are)|the\s+compression|usage|compact\s)`)
)

func NewCompactOutputObserver() *CompactOutputObserver {
	return &CompactOutputObserver{}
}

func (o *CompactOutputObserver) ObserveLine(line string) (string, bool) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return "", false
	}
	if m := dirHeaderRe.FindStringSubmatch(line); m != nil {
		o.dir = m[1]
		return "", false
	}
	if bannerRe.MatchString(line) {
		return "", false
	}
	if m := fileLineRe.FindStringSubmatch(line); m != nil {
		name := strings.TrimSpace(m[1])
		if o.dir != "" && !strings.ContainsAny(name, `\/`) {
			return joinToolPath(o.dir, name), true
		}
		return name, true
	}

	candidate := strings.TrimSpace(line)
	if strings.ContainsAny(candidate, `\/`) && extRe.MatchString(candidate) {
		return candidate, true
	}
	return "", false
}

// joinToolPath keeps the separator style the tool printed.
func joinToolPath(dir, name string) string {
	if strings.HasSuffix(dir, `\`) || strings.HasSuffix(dir, "/") {
		return dir + name
	}
	if strings.Contains(dir, `\`) {
		return dir + `\` + name
	}
	return filepath.ToSlash(dir) + "/" + name
}

// NopObserver ignores all output.
type NopObserver struct{}

func (NopObserver) ObserveLine(string) (string, bool) { return "", false }
