package compiler

import (
	"github.com/oxhq/archc/internal/expr"
	"github.com/oxhq/archc/internal/value"
	"github.com/oxhq/archc/internal/variation"
)

// Variations enumerates every input configuration consistent with all
// guards, minus those matched by an exclusion filter. It shares the
// compiler's initialized tree and declared values but runs independently of
// image construction.
func (c *Compiler) Variations(filters []*expr.Expression) ([]map[string]string, error) {
	if err := c.init(); err != nil {
		return nil, err
	}
	declared := c.declaredLookup(map[string]value.Value{})
	e := variation.New(c.root, declared, c.log)
	if c.varProgress > 0 {
		e.SetProgressEvery(c.varProgress)
	}
	return e.Enumerate(filters)
}
