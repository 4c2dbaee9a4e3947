package runner

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// StatusSummary is parsed from the tool's free-text report. Parsed is false
// when no count could be recognised, which is not an error.
type StatusSummary struct {
	Directory    string
	TotalFiles   int64
	Directories  int64
	Compressed   int64
	Uncompressed int64
	Ratio        float64
	Parsed       bool
}

var (
	totalRe        = regexp.MustCompile(`(?i)of\s+(\d[\d,.\s]*?)\s+files?(?:\s+within\s+(\d[\d,.\s]*?)\s+director)?`)
	compressedRe   = regexp.MustCompile(`(?i)(\d[\d,.\s]*?)\s+(?:files?\s+)?are\s+compressed`)
	uncompressedRe = regexp.MustCompile(`(?i)(\d[\d,.\s]*?)\s+(?:files?\s+)?are\s+not\s+compressed`)
	ratioRe        = regexp.MustCompile(`(?i)(\d+[.,]\d+)\s+to\s+1`)
)

// QueryStatus runs the tool without any mutating switch and parses counts
// from its output on a best-effort basis.
func (r *Runner) QueryStatus(ctx context.Context, dir string) (*StatusSummary, *Result, error) {
	opts := Options{Recursive: true, Quiet: true}
	req := Request{Operation: OpQuery, Directory: dir, Options: opts}
	res, err := r.run(ctx, BuildArgs(OpQuery, dir, opts), req, nil)
	if err != nil {
		return nil, res, err
	}
	sum := ParseStatus(res.Stdout)
	sum.Directory = dir
	return sum, res, nil
}

// ParseStatus extracts file counts from compact.exe's summary lines:
//
//	Of 120 files within 3 directories
//	45 are compressed and 75 are not compressed.
//	1,234,567 total bytes of data are stored in 456,789 bytes.
//	The compression ratio is 2.7 to 1.
func ParseStatus(out string) *StatusSummary {
	s := &StatusSummary{}
	if m := totalRe.FindStringSubmatch(out); m != nil {
		s.TotalFiles, _ = parseCount(m[1])
		if m[2] != "" {
			s.Directories, _ = parseCount(m[2])
		}
		s.Parsed = true
	}
	if m := uncompressedRe.FindStringSubmatch(out); m != nil {
		if n, ok := parseCount(m[1]); ok {
			s.Uncompressed = n
			s.Parsed = true
		}
	}
	// strip the "not compressed" clause so its number is not read twice
	if m := compressedRe.FindStringSubmatch(uncompressedRe.ReplaceAllString(out, "")); m != nil {
		if n, ok := parseCount(m[1]); ok {
			s.Compressed = n
			s.Parsed = true
		}
	}
	if m := ratioRe.FindStringSubmatch(out); m != nil {
		if f, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64); err == nil {
			s.Ratio = f
		}
	}
	if s.TotalFiles == 0 && (s.Compressed > 0 || s.Uncompressed > 0) {
		s.TotalFiles = s.Compressed + s.Uncompressed
	}
	return s
}

// parseCount accepts digit groups separated by ',', '.', or spaces.
func parseCount(s string) (int64, bool) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(b.String(), 10, 64)
	return n, err == nil
}
