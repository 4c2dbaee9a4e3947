package runner

import (
	"strings"
)

// Operation selects what the tool does to the directory.
type Operation int

const (
	OpCompress Operation = iota
	OpUncompress
	OpQuery
)

func (o Operation) String() string {
	switch o {
	case OpCompress:
		return "compress"
	case OpUncompress:
		return "uncompress"
	default:
		return "query"
	}
}

// Options maps one-to-one onto compact.exe switches.
type Options struct {
	Recursive       bool // /S
	ContinueOnError bool // /I
	Force           bool // /F
	Quiet           bool // /Q
	Algorithm       Algorithm
}

func DefaultOptions() Options {
	return Options{
		Recursive:       true,
		ContinueOnError: true,
		Quiet:           true,
	}
}

// BuildArgs returns the argument vector in a fixed order:
// {mode} /S:dir [/I] [/F] [/Q] [/EXE:ALGO]. Queries never carry mutating switches.
func BuildArgs(op Operation, dir string, opts Options) []string {
	var args []string
	switch op {
	case OpCompress:
		args = append(args, "/C")
	case OpUncompress:
		args = append(args, "/U")
	}

	if opts.Recursive {
		args = append(args, "/S:"+dir)
	} else {
		args = append(args, dir)
	}

	if op == OpQuery {
		if opts.Quiet {
			args = append(args, "/Q")
		}
		return args
	}

	if opts.ContinueOnError {
		args = append(args, "/I")
	}
	if opts.Force {
		args = append(args, "/F")
	}
	if opts.Quiet {
		args = append(args, "/Q")
	}
	if exe := opts.Algorithm.ExeArg(); exe != "" {
		args = append(args, "/EXE:"+exe)
	}
	return args
}

// CommandLine renders the invocation the way compact.exe expects to parse it,
// with the /S: directory quoted.
func CommandLine(tool string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quote(tool))
	for _, a := range args {
		switch {
		case strings.HasPrefix(a, "/S:"):
			parts = append(parts, `/S:"`+trimDir(strings.TrimPrefix(a, "/S:"))+`"`)
		default:
			parts = append(parts, quote(a))
		}
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t") {
		return `"` + s + `"`
	}
	return s
}

// trimDir drops trailing backslashes, which would otherwise escape the
// closing quote.
func trimDir(dir string) string {
	d := strings.TrimRight(dir, `\`)
	if strings.HasSuffix(d, ":") {
		return d + `\.`
	}
	return d
}
