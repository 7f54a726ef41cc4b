// Package render resolves output directives into content-addressed file
// objects: the regex/replacement transformation algebra, directory
// scanning with glob predicates, and the grouping that keeps the emitted
// output deterministic.
package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oxhq/archc/internal/expr"
)

// FileOp is one path transformation: a regex applied to the current file
// name with a replacement that may reference instantiation-time variables
// via ${...} tokens.
type FileOp struct {
	Regex       string
	Replacement string
}

// Compare orders ops lexicographically by regex then replacement.
func (op FileOp) Compare(o FileOp) int {
	if c := strings.Compare(op.Regex, o.Regex); c != 0 {
		return c
	}
	return strings.Compare(op.Replacement, o.Replacement)
}

// globAll matches any path; a trailing op with this regex rewrites the
// whole name and never blocks folding.
const globAll = "^(.*)$"

// interpolated reports whether the replacement references a variable.
func interpolated(replacement string) bool {
	return strings.Contains(replacement, "${")
}

// Foldable reports whether the op sequence can collapse into a single
// synthetic op: at most one op may interpolate, except that a final
// whole-name op is always acceptable.
func Foldable(ops []FileOp) bool {
	count := 0
	for i, op := range ops {
		if !interpolated(op.Replacement) {
			continue
		}
		if i == len(ops)-1 && op.Regex == globAll {
			continue
		}
		count++
	}
	return count <= 1
}

// Fold collapses the op sequence against the source path. Foldable
// sequences become one whole-name op carrying the fully applied path;
// otherwise a leading checksum→source op re-roots the chain so the
// remaining ops still see the source path.
func Fold(checksum, source string, ops []FileOp) ([]FileOp, error) {
	if !Foldable(ops) {
		out := make([]FileOp, 0, len(ops)+1)
		out = append(out, FileOp{Regex: "^" + regexp.QuoteMeta(checksum) + "$", Replacement: escapeReplacement(source)})
		return append(out, ops...), nil
	}
	path := source
	for _, op := range ops {
		applied, err := apply(op, path)
		if err != nil {
			return nil, err
		}
		path = applied
	}
	return []FileOp{{Regex: globAll, Replacement: escapeReplacement(path)}}, nil
}

// apply runs one op over the path, keeping ${...} variable tokens in the
// replacement intact rather than letting the regexp engine expand them as
// capture groups.
func apply(op FileOp, path string) (string, error) {
	re, err := regexp.Compile(op.Regex)
	if err != nil {
		return "", fmt.Errorf("render: bad transformation regex %q: %w", op.Regex, err)
	}
	const mark = "\x00"
	protected := strings.ReplaceAll(op.Replacement, "${", mark)
	out := re.ReplaceAllString(path, protected)
	return strings.ReplaceAll(out, mark, "${"), nil
}

// escapeReplacement neutralizes regexp expansion syntax in a literal
// replacement so the downstream instantiator substitutes only its own
// ${...} variables.
func escapeReplacement(s string) string {
	return strings.ReplaceAll(s, "$$", "$$$$")
}

// CompareOps orders op lists lexicographically.
func CompareOps(a, b []FileOp) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := a[i].Compare(b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

// FileObject is one rendered output file: its blob checksum, the folded
// transformation chain producing its target path, and the guard under
// which it is emitted.
type FileObject struct {
	Checksum   string
	Ops        []FileOp
	Expression *expr.Expression
	Template   bool
}

// Compare imposes the total order used to emit file groups: by expression,
// then checksum, then ops.
func (f FileObject) Compare(o FileObject) int {
	if c := f.Expression.Compare(o.Expression); c != 0 {
		return c
	}
	if c := strings.Compare(f.Checksum, o.Checksum); c != 0 {
		return c
	}
	if c := CompareOps(f.Ops, o.Ops); c != 0 {
		return c
	}
	return boolCompare(f.Template, o.Template)
}

func boolCompare(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}

// OpsKey returns a canonical signature for an ops list, used to assign
// transformation ids.
func OpsKey(ops []FileOp, template bool) string {
	var b strings.Builder
	if template {
		b.WriteString("tpl|")
	}
	for _, op := range ops {
		b.WriteString(op.Regex)
		b.WriteByte('\x1f')
		b.WriteString(op.Replacement)
		b.WriteByte('\x1e')
	}
	return b.String()
}
