package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnostics_DedupAndOrder(t *testing.T) {
	d := NewDiagnostics()
	d.Add(ECStepNoInput, "script.xml:3", "step 's' has no input")
	d.Add(ECInputTypeMismatch, "script.xml:9", "input 'x' redeclared with a different type")
	d.Add(ECStepNoInput, "script.xml:3", "step 's' has no input") // duplicate

	assert.Equal(t, 2, d.Len())
	items := d.Items()
	assert.Equal(t, ECStepNoInput, items[0].Code)
	assert.Equal(t, ECInputTypeMismatch, items[1].Code)
}

func TestDiagnostics_Err(t *testing.T) {
	d := NewDiagnostics()
	assert.NoError(t, d.Err())

	d.Add(ECPresetUnresolved, "script.xml:2", "preset 'flavor' resolves to no input")
	err := d.Err()
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "PRESET_UNRESOLVED")
	assert.Equal(t, []ErrorCode{ECPresetUnresolved}, verr.Codes())
}

func TestFatalKinds(t *testing.T) {
	err := ErrInlineMethodNotFound.New("make-module", "common.xml")
	assert.True(t, ErrInlineMethodNotFound.Is(err))
	assert.False(t, ErrIO.Is(err))
}
