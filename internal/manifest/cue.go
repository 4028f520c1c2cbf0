package manifest

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// ParseCUE evaluates a CUE manifest against the manifest schema.
func ParseCUE(name string, data []byte) (*Manifest, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("manifest schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	src := v
	v = schema.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var m Manifest
	var err error
	if m.Name, err = optionalString(v, "name"); err != nil {
		return nil, err
	}
	if m.Description, err = optionalString(v, "description"); err != nil {
		return nil, err
	}

	iter, err := v.LookupPath(cue.ParsePath("cuts")).List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		entry, err := parseEntry(iter.Value())
		if err != nil {
			return nil, err
		}
		m.Cuts = append(m.Cuts, entry)
	}
	setPositions(src, m.Cuts)
	return &m, nil
}

// setPositions points each entry at its literal in the manifest source.
// Positions of the unified value may refer to the schema instead.
func setPositions(src cue.Value, entries []Entry) {
	iter, err := src.LookupPath(cue.ParsePath("cuts")).List()
	if err != nil {
		return
	}
	for i := 0; iter.Next() && i < len(entries); i++ {
		if pos := iter.Value().Pos(); pos.IsValid() {
			entries[i].Pos = pos
		}
	}
}

func parseEntry(v cue.Value) (Entry, error) {
	e := Entry{Pos: v.Pos()}

	action, err := v.LookupPath(cue.ParsePath("action")).String()
	if err != nil {
		return e, formatCUEError(err)
	}
	e.Action = action

	if e.Facet, err = optionalString(v, "facet"); err != nil {
		return e, err
	}

	iter, err := v.LookupPath(cue.ParsePath("selectors")).List()
	if err != nil {
		return e, formatCUEError(err)
	}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return e, formatCUEError(err)
		}
		e.Selectors = append(e.Selectors, s)
	}
	return e, nil
}

func optionalString(v cue.Value, path string) (string, error) {
	field := v.LookupPath(cue.ParsePath(path))
	if !field.Exists() {
		return "", nil
	}
	s, err := field.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &Error{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return &Error{Field: "cue", Message: first.Error()}
}
