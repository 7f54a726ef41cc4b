// Package node contains the mutable n-ary tree IR shared by the source
// script and the compiled image. Nodes are kind-tagged, keep ordered
// children and a string attribute map, and may be wrapped by a condition
// carrying a guard expression.
package node

// Kind tags a node with its structural role.
type Kind string

// Block kinds.
const (
	KindScript         Kind = "script"
	KindStep           Kind = "step"
	KindInputs         Kind = "inputs"
	KindVariables      Kind = "variables"
	KindPresets        Kind = "presets"
	KindOutput         Kind = "output"
	KindModel          Kind = "model"
	KindModelValue     Kind = "value"
	KindTransformation Kind = "transformation"
	KindInclude        Kind = "include"
	KindExclude        Kind = "exclude"
	KindCondition      Kind = "condition"
	KindMethod         Kind = "method"
	KindMethods        Kind = "methods"
	KindSource         Kind = "source"
	KindExec           Kind = "exec"
	KindCall           Kind = "call"
	KindFile           Kind = "file"
	KindTemplate       Kind = "template"
	KindFiles          Kind = "files"
	KindTemplates      Kind = "templates"
	KindReplace        Kind = "replace"
)

// Input kinds.
const (
	KindInputBoolean Kind = "input-boolean"
	KindInputText    Kind = "input-text"
	KindInputEnum    Kind = "input-enum"
	KindInputList    Kind = "input-list"
	KindInputOption  Kind = "option"
)

// Variable kinds.
const (
	KindVariableBoolean Kind = "variable-boolean"
	KindVariableText    Kind = "variable-text"
	KindVariableEnum    Kind = "variable-enum"
	KindVariableList    Kind = "variable-list"
)

// Preset kinds.
const (
	KindPresetBoolean Kind = "preset-boolean"
	KindPresetText    Kind = "preset-text"
	KindPresetEnum    Kind = "preset-enum"
	KindPresetList    Kind = "preset-list"
)

// IsInput reports whether the kind declares a user-visible input.
func (k Kind) IsInput() bool {
	switch k {
	case KindInputBoolean, KindInputText, KindInputEnum, KindInputList:
		return true
	}
	return false
}

// IsVariable reports whether the kind declares a variable.
func (k Kind) IsVariable() bool {
	switch k {
	case KindVariableBoolean, KindVariableText, KindVariableEnum, KindVariableList:
		return true
	}
	return false
}

// IsPreset reports whether the kind declares a preset.
func (k Kind) IsPreset() bool {
	switch k {
	case KindPresetBoolean, KindPresetText, KindPresetEnum, KindPresetList:
		return true
	}
	return false
}

// IsOutputDirective reports whether the kind materializes output content.
func (k Kind) IsOutputDirective() bool {
	switch k {
	case KindFile, KindTemplate, KindFiles, KindTemplates:
		return true
	}
	return false
}
