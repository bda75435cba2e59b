package bridge

import (
	"fmt"
	"strings"
)

// Variable is one core-declared configuration option.
type Variable struct {
	Key         string
	Description string
	Options     []string
	Value       string
}

// parseVariable parses the declared "Description; opt1|opt2|opt3" form.
// The first listed option is the default.
func parseVariable(key, decl string) (Variable, error) {
	desc, opts, found := strings.Cut(decl, ";")
	if !found {
		return Variable{}, fmt.Errorf("variable %s: no option list in %q", key, decl)
	}
	opts = strings.TrimPrefix(opts, " ")
	options := strings.Split(opts, "|")
	if options[0] == "" {
		return Variable{}, fmt.Errorf("variable %s: empty option list in %q", key, decl)
	}
	return Variable{
		Key:         key,
		Description: desc,
		Options:     options,
		Value:       options[0],
	}, nil
}

// variableTable holds core-declared variables. The dirty flag answers
// GET_VARIABLE_UPDATE and is cleared by that query.
type variableTable struct {
	vars  map[string]*Variable
	order []string
	dirty bool
}

func newVariableTable() *variableTable {
	return &variableTable{vars: make(map[string]*Variable)}
}

// declare installs a core-declared variable. Redeclaring a key keeps its
// current value when that value is still a listed option.
func (t *variableTable) declare(v Variable) {
	if old, ok := t.vars[v.Key]; ok {
		for _, opt := range v.Options {
			if opt == old.Value {
				v.Value = old.Value
				break
			}
		}
		t.vars[v.Key] = &v
		return
	}
	t.order = append(t.order, v.Key)
	t.vars[v.Key] = &v
}

func (t *variableTable) get(key string) (string, bool) {
	v, ok := t.vars[key]
	if !ok {
		return "", false
	}
	return v.Value, true
}

// set updates a declared variable and marks the table dirty so the core
// re-reads it. The value must be one of the declared options.
func (t *variableTable) set(key, value string) error {
	v, ok := t.vars[key]
	if !ok {
		return fmt.Errorf("variable %s not declared by core", key)
	}
	listed := false
	for _, opt := range v.Options {
		if opt == value {
			listed = true
			break
		}
	}
	if !listed {
		return fmt.Errorf("variable %s: %q not among options %s",
			key, value, strings.Join(v.Options, "|"))
	}
	if v.Value != value {
		v.Value = value
		t.dirty = true
	}
	return nil
}

// consumeDirty reports and clears the update-pending flag.
func (t *variableTable) consumeDirty() bool {
	d := t.dirty
	t.dirty = false
	return d
}

// list returns copies of all variables in declaration order.
func (t *variableTable) list() []Variable {
	out := make([]Variable, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, *t.vars[key])
	}
	return out
}
