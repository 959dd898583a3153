package storage

import (
	"bufio"
	"fmt"
	"strings"
)

// SplitStatements splits a SQL script on top-level semicolons.
//
// Semicolons inside single-quoted strings, double-quoted identifiers, line
// comments (--) and block comments are not separators. Empty statements and
// comment-only chunks are dropped. Returned statements carry no trailing ';'.
func SplitStatements(script string) []string {
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		s := strings.TrimSpace(cur.String())
		cur.Reset()
		if s != "" && !commentOnly(s) {
			out = append(out, s)
		}
	}

	rs := []rune(script)
	for i := 0; i < len(rs); i++ {
		c := rs[i]
		switch {
		case c == '\'' || c == '"':
			j := i + 1
			for j < len(rs) {
				if rs[j] == c {
					// doubled quote is an escaped quote
					if j+1 < len(rs) && rs[j+1] == c {
						j += 2
						continue
					}
					break
				}
				j++
			}
			end := min(j, len(rs)-1)
			cur.WriteString(string(rs[i : end+1]))
			i = end
		case c == '-' && i+1 < len(rs) && rs[i+1] == '-':
			j := i
			for j < len(rs) && rs[j] != '\n' {
				j++
			}
			cur.WriteString(string(rs[i:j]))
			i = j - 1
		case c == '/' && i+1 < len(rs) && rs[i+1] == '*':
			j := i + 2
			for j+1 < len(rs) && !(rs[j] == '*' && rs[j+1] == '/') {
				j++
			}
			end := min(j+1, len(rs)-1)
			cur.WriteString(string(rs[i : end+1]))
			i = end
		case c == ';':
			flush()
		default:
			cur.WriteRune(c)
		}
	}
	flush()
	return out
}

// SplitBatches splits a SQL Server style script on lines consisting only of
// GO (case-insensitive). Statements inside a batch are left intact. A line
// longer than 4 MiB is an error.
func SplitBatches(script string) ([]string, error) {
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		s := strings.TrimSpace(cur.String())
		cur.Reset()
		if s != "" && !commentOnly(s) {
			out = append(out, s)
		}
	}

	sc := bufio.NewScanner(strings.NewReader(script))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.EqualFold(strings.TrimSpace(line), "GO") {
			flush()
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("split batches: %w", err)
	}
	flush()
	return out, nil
}

// SplitScript adapts SplitStatements to the error-returning splitter shape.
func SplitScript(script string) ([]string, error) {
	return SplitStatements(script), nil
}

func commentOnly(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		if strings.HasPrefix(line, "/*") && strings.HasSuffix(line, "*/") {
			continue
		}
		return false
	}
	return true
}

// RowsPerStatement returns how many rows of width columns fit in one INSERT
// given a bind-parameter limit (0 = unlimited) and a configured batch size.
func RowsPerStatement(columns, maxParams, batchSize int) int {
	if batchSize <= 0 {
		batchSize = 500
	}
	if columns <= 0 || maxParams <= 0 {
		return batchSize
	}
	n := maxParams / columns
	if n < 1 {
		n = 1
	}
	return min(n, batchSize)
}
