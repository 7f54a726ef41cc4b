// Package model holds the error taxonomy shared by the compiler, the
// validator and the CLI.
package model

import (
	"sort"
	"strings"

	errors "gopkg.in/src-d/go-errors.v1"
)

// ErrorCode provides a machine-readable error type for diagnostics and
// JSON output.
type ErrorCode string

const (
	ECPresetUnresolved        ErrorCode = "PRESET_UNRESOLVED"
	ECPresetTypeMismatch      ErrorCode = "PRESET_TYPE_MISMATCH"
	ECExprIncompatibleOp      ErrorCode = "EXPR_INCOMPATIBLE_OPERATOR"
	ECExprUnresolvedVariable  ErrorCode = "EXPR_UNRESOLVED_VARIABLE"
	ECExprEvalError           ErrorCode = "EXPR_EVAL_ERROR"
	ECStepNoInput             ErrorCode = "STEP_NO_INPUT"
	ECStepDeclaredOptional    ErrorCode = "STEP_DECLARED_OPTIONAL"
	ECStepNotDeclaredOptional ErrorCode = "STEP_NOT_DECLARED_OPTIONAL"
	ECInputAlreadyDeclared    ErrorCode = "INPUT_ALREADY_DECLARED"
	ECInputTypeMismatch       ErrorCode = "INPUT_TYPE_MISMATCH"
	ECInputOptionalNoDefault  ErrorCode = "INPUT_OPTIONAL_NO_DEFAULT"
	ECInputNotInStep          ErrorCode = "INPUT_NOT_IN_STEP"
	ECOptionValueDeclared     ErrorCode = "OPTION_VALUE_ALREADY_DECLARED"
)

// Fatal error kinds. These abort compilation immediately instead of
// accumulating.
var (
	ErrInlineMethodNotFound    = errors.NewKind("inline: method %q not found in %s")
	ErrStubContainerUnresolved = errors.NewKind("stubs: no variables container reachable for %q")
	ErrIO                      = errors.NewKind("io: %s")
)

// Diagnostic is one accumulated validation finding keyed by its source
// location.
type Diagnostic struct {
	Code     ErrorCode
	Location string
	Message  string
}

func (d Diagnostic) String() string {
	if d.Location == "" {
		return string(d.Code) + ": " + d.Message
	}
	return d.Location + ": " + string(d.Code) + ": " + d.Message
}

// Diagnostics accumulates findings, deduplicated by rendered message and
// kept in insertion order.
type Diagnostics struct {
	seen  map[string]bool
	items []Diagnostic
}

// NewDiagnostics returns an empty accumulator.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{seen: map[string]bool{}}
}

// Add records a finding unless an identical message was already recorded.
func (d *Diagnostics) Add(code ErrorCode, location, message string) {
	diag := Diagnostic{Code: code, Location: location, Message: message}
	key := diag.String()
	if d.seen[key] {
		return
	}
	d.seen[key] = true
	d.items = append(d.items, diag)
}

// Empty reports whether no findings were recorded.
func (d *Diagnostics) Empty() bool {
	return len(d.items) == 0
}

// Len returns the number of distinct findings.
func (d *Diagnostics) Len() int {
	return len(d.items)
}

// Items returns the findings in insertion order.
func (d *Diagnostics) Items() []Diagnostic {
	cp := make([]Diagnostic, len(d.items))
	copy(cp, d.items)
	return cp
}

// Err converts the accumulated findings into a ValidationError, nil when
// empty.
func (d *Diagnostics) Err() error {
	if d.Empty() {
		return nil
	}
	return &ValidationError{diags: d.Items()}
}

// ValidationError carries the full diagnostic list; its message is the
// newline-joined findings.
type ValidationError struct {
	diags []Diagnostic
}

// Error implements error.
func (e *ValidationError) Error() string {
	lines := make([]string, len(e.diags))
	for i, d := range e.diags {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}

// Errors returns the individual findings.
func (e *ValidationError) Errors() []Diagnostic {
	cp := make([]Diagnostic, len(e.diags))
	copy(cp, e.diags)
	return cp
}

// Codes returns the distinct error codes present, sorted.
func (e *ValidationError) Codes() []ErrorCode {
	set := map[ErrorCode]bool{}
	for _, d := range e.diags {
		set[d.Code] = true
	}
	out := make([]ErrorCode, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
