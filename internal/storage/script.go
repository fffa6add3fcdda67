package storage

import "strings"

// SplitScript splits a DDL script into individual statements so backends can
// execute them one ExecContext call at a time. database/sql drivers differ in
// whether they accept multi-statement strings; splitting up front keeps the
// behavior identical across sqlite, postgres, and mssql.
//
// Handling is deliberately simple and matches what DDL scripts need:
//   - "--" line comments are stripped
//   - statements are separated by ";"
//   - quoted strings ('...' and "...") are respected, so a literal ";" inside
//     a string does not split
//
// Empty statements (e.g. trailing separators) are dropped.
func SplitScript(script string) []string {
	var (
		out  []string
		b    strings.Builder
		inSQ bool // inside '...'
		inDQ bool // inside "..."
	)

	lines := strings.Split(script, "\n")
	for li, line := range lines {
		if !inSQ && !inDQ {
			if ix := strings.Index(line, "--"); ix >= 0 && !insideQuotes(line[:ix]) {
				line = line[:ix]
			}
		}
		for _, r := range line {
			switch {
			case r == '\'' && !inDQ:
				inSQ = !inSQ
				b.WriteRune(r)
			case r == '"' && !inSQ:
				inDQ = !inDQ
				b.WriteRune(r)
			case r == ';' && !inSQ && !inDQ:
				if s := strings.TrimSpace(b.String()); s != "" {
					out = append(out, s)
				}
				b.Reset()
			default:
				b.WriteRune(r)
			}
		}
		if li < len(lines)-1 {
			b.WriteRune('\n')
		}
	}

	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// insideQuotes reports whether s ends inside an unterminated quoted string.
// Used only for comment stripping on a single line.
func insideQuotes(s string) bool {
	var inSQ, inDQ bool
	for _, r := range s {
		switch {
		case r == '\'' && !inDQ:
			inSQ = !inSQ
		case r == '"' && !inSQ:
			inDQ = !inDQ
		}
	}
	return inSQ || inDQ
}
