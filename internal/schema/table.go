// Package schema compiles CUE table definitions into grid property sets.
// Tables are declared in CUE so that operators can validate a grid's shape
// before the server accepts mutations against it.
package schema

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/atoms-tech/gridsync/internal/grid"
)

// TableSchema is the compiled form of one CUE table declaration.
type TableSchema struct {
	ID         grid.TableID
	Name       string
	Properties []grid.PropertyDef
}

// CompileTable parses a CUE value into a TableSchema.
// Uses the CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the table struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`table: requirements: { ... }`)
//	ts, err := CompileTable(v.LookupPath(cue.ParsePath("table.requirements")))
func CompileTable(v cue.Value) (*TableSchema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	ts := &TableSchema{}

	// Table id comes from the struct label (the path selector)
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		ts.ID = grid.TableID(labels[len(labels)-1].String())
	}

	// Display name is optional, defaults to the id
	nameVal := v.LookupPath(cue.ParsePath("name"))
	if nameVal.Exists() {
		name, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		ts.Name = grid.NormalizeName(name)
	} else {
		ts.Name = string(ts.ID)
	}

	props, err := parseProperties(v)
	if err != nil {
		return nil, err
	}
	if len(props) == 0 {
		return nil, &CompileError{
			Field:   "property",
			Message: "at least one property is required",
			Pos:     v.Pos(),
		}
	}
	ts.Properties = props

	if err := checkUniqueNames(v, props); err != nil {
		return nil, err
	}

	return ts, nil
}

// parseProperties extracts property definitions from the table.
func parseProperties(v cue.Value) ([]grid.PropertyDef, error) {
	var props []grid.PropertyDef

	propVal := v.LookupPath(cue.ParsePath("property"))
	if !propVal.Exists() {
		return props, nil
	}

	iter, err := propVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		def, err := parseProperty(name, iter.Value())
		if err != nil {
			return nil, err
		}
		props = append(props, def)
	}

	return props, nil
}

// parseProperty parses a single property definition.
// Supports a bare kind string or a structured object:
//
//	property: Name: "text"
//	property: Priority: { kind: "single_select", options: ["low", "high"] }
func parseProperty(name string, v cue.Value) (grid.PropertyDef, error) {
	def := grid.PropertyDef{Name: grid.NormalizeName(name)}

	// Try as bare kind string first
	if kind, err := v.String(); err == nil {
		def.Kind = grid.PropertyKind(kind)
		return def, validateKind(def, v)
	}

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return def, &CompileError{
			Field:   fmt.Sprintf("property.%s.kind", name),
			Message: "kind is required",
			Pos:     v.Pos(),
		}
	}
	kind, err := kindVal.String()
	if err != nil {
		return def, formatCUEError(err)
	}
	def.Kind = grid.PropertyKind(kind)

	optionsVal := v.LookupPath(cue.ParsePath("options"))
	if optionsVal.Exists() {
		optIter, err := optionsVal.List()
		if err != nil {
			return def, formatCUEError(err)
		}
		for optIter.Next() {
			opt, err := optIter.Value().String()
			if err != nil {
				return def, formatCUEError(err)
			}
			def.Options = append(def.Options, opt)
		}
	}

	widthVal := v.LookupPath(cue.ParsePath("width"))
	if widthVal.Exists() {
		width, err := widthVal.Int64()
		if err != nil {
			return def, formatCUEError(err)
		}
		if width < 0 {
			return def, &CompileError{
				Field:   fmt.Sprintf("property.%s.width", name),
				Message: "width must not be negative",
				Pos:     widthVal.Pos(),
			}
		}
		def.Width = int(width)
	}

	return def, validateKind(def, v)
}

// validateKind checks the kind is known and select kinds carry options.
func validateKind(def grid.PropertyDef, v cue.Value) error {
	if !grid.ValidKinds[def.Kind] {
		return &CompileError{
			Field:   fmt.Sprintf("property.%s.kind", def.Name),
			Message: fmt.Sprintf("unknown kind %q", def.Kind),
			Pos:     v.Pos(),
		}
	}
	if (def.Kind == grid.KindSelect || def.Kind == grid.KindMultiSelect) && len(def.Options) == 0 {
		return &CompileError{
			Field:   fmt.Sprintf("property.%s.options", def.Name),
			Message: fmt.Sprintf("%s properties require at least one option", def.Kind),
			Pos:     v.Pos(),
		}
	}
	return nil
}

// checkUniqueNames rejects tables where two properties normalize to the
// same display name.
func checkUniqueNames(v cue.Value, props []grid.PropertyDef) error {
	seen := make(map[string]string, len(props))
	for _, def := range props {
		key := grid.NormalizeName(def.Name)
		if prior, ok := seen[key]; ok {
			return &CompileError{
				Field:   fmt.Sprintf("property.%s", def.Name),
				Message: fmt.Sprintf("name collides with property %q", prior),
				Pos:     v.Pos(),
			}
		}
		seen[key] = def.Name
	}
	return nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
