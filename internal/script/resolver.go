package script

import (
	"errors"
	"fmt"

	"github.com/oxhq/archc/internal/node"
	"github.com/oxhq/archc/internal/value"
)

// ErrInvalidInput marks a resolved value that no declaration can accept,
// e.g. an enum value matching no option. During variation normalization it
// flags the variation as infeasible and is dropped silently.
var ErrInvalidInput = errors.New("invalid input value")

// Resolver supplies the value of an input during script execution.
type Resolver interface {
	// Resolve returns the value for the input declared at the dotted key.
	// The input node provides kind and declared default.
	Resolve(input *node.Node, key string) (value.Value, error)
}

// InputDefault extracts an input declaration's default as a typed value;
// the second result reports whether a default exists.
func InputDefault(input *node.Node) (value.Value, bool) {
	if !input.HasAttr("default") {
		return value.Empty, false
	}
	raw := input.Attr("default")
	switch input.Kind() {
	case node.KindInputBoolean:
		v := value.Dynamic(raw)
		b, err := v.AsBool()
		if err != nil {
			return value.Empty, false
		}
		return value.OfBool(b), true
	case node.KindInputList:
		l, _ := value.Dynamic(raw).AsList()
		return value.OfList(l), true
	default:
		return value.OfString(raw), true
	}
}

// CoerceInput converts a raw string to the input's value kind.
func CoerceInput(input *node.Node, raw string) (value.Value, error) {
	switch input.Kind() {
	case node.KindInputBoolean:
		b, err := value.Dynamic(raw).AsBool()
		if err != nil {
			return value.Empty, fmt.Errorf("%w: %q for %s", ErrInvalidInput, raw, input.Attr("name"))
		}
		return value.OfBool(b), nil
	case node.KindInputList:
		l, err := value.Dynamic(raw).AsList()
		if err != nil {
			return value.Empty, err
		}
		return value.OfList(l), nil
	default:
		return value.OfString(raw), nil
	}
}

// BatchRecord is one value resolved during a batch run, in traversal order.
type BatchRecord struct {
	Key   string
	Value value.Value
	User  bool
}

// BatchResolver serves fixed values from a variation map and records what
// it handed out, in traversal order. Inputs absent from the map fall back
// to their declared default, recorded as auto-created.
type BatchResolver struct {
	values  map[string]string
	records []BatchRecord
}

// NewBatchResolver returns a resolver over the given key→raw-value map.
func NewBatchResolver(values map[string]string) *BatchResolver {
	return &BatchResolver{values: values}
}

// Resolve implements Resolver.
func (r *BatchResolver) Resolve(input *node.Node, key string) (value.Value, error) {
	if raw, ok := r.values[key]; ok {
		v, err := CoerceInput(input, raw)
		if err != nil {
			return value.Empty, err
		}
		r.records = append(r.records, BatchRecord{Key: key, Value: v, User: true})
		return v, nil
	}
	if def, ok := InputDefault(input); ok {
		r.records = append(r.records, BatchRecord{Key: key, Value: def})
		return def, nil
	}
	return value.Empty, fmt.Errorf("%w: no value for %s", ErrInvalidInput, key)
}

// Explicit reports whether the batch carries a value for the key, as
// opposed to falling back to the input's default.
func (r *BatchResolver) Explicit(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Records returns the resolved values in traversal order.
func (r *BatchResolver) Records() []BatchRecord {
	cp := make([]BatchRecord, len(r.records))
	copy(cp, r.records)
	return cp
}
