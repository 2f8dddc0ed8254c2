package grid

// TableID identifies a single table. Entity identity is scoped to one
// table; entities from different tables are never compared.
type TableID string

// ColumnID identifies a column within a table. Server-assigned once the
// column is persisted; locally created columns carry a placeholder ID
// until then.
type ColumnID string

// RowID identifies a row (requirement) within a table.
type RowID string

// PropertyKind enumerates the closed set of cell value kinds.
type PropertyKind string

const (
	KindText        PropertyKind = "text"
	KindNumber      PropertyKind = "number"
	KindDate        PropertyKind = "date"
	KindSelect      PropertyKind = "single_select"
	KindMultiSelect PropertyKind = "multi_select"
)

// ValidKinds defines the allowed property kinds.
var ValidKinds = map[PropertyKind]bool{
	KindText:        true,
	KindNumber:      true,
	KindDate:        true,
	KindSelect:      true,
	KindMultiSelect: true,
}

// DefaultColumnWidth is the display width used when a column has none.
const DefaultColumnWidth = 160

// PropertyRef references the external property definition a column
// displays. The definition itself (name, kind, options) is owned by the
// persistence layer; the ref carries the fields the client needs.
type PropertyRef struct {
	ID      string       `json:"id,omitempty"`
	Name    string       `json:"name"`
	Kind    PropertyKind `json:"kind"`
	Options []string     `json:"options,omitempty"`
}

// PropertyDef is an authored property definition, before persistence
// assigns it an ID. Produced by the schema compiler.
type PropertyDef struct {
	Name    string       `json:"name"`
	Kind    PropertyKind `json:"kind"`
	Options []string     `json:"options,omitempty"`
	Width   int          `json:"width,omitempty"`
}

// Ref converts a definition into a PropertyRef with the given ID.
func (d PropertyDef) Ref(id string) PropertyRef {
	return PropertyRef{
		ID:      id,
		Name:    d.Name,
		Kind:    d.Kind,
		Options: cloneOptions(d.Options),
	}
}

// Column is a table column. Position is the ordering key, unique within
// a table except transiently (drag reordering); ties iterate in stable
// source order.
type Column struct {
	ID       ColumnID    `json:"id"`
	Position int         `json:"position"`
	Property PropertyRef `json:"property"`
	Width    int         `json:"width,omitempty"`
}

// EffectiveWidth returns the display width, falling back to
// DefaultColumnWidth when unset.
func (c Column) EffectiveWidth() int {
	if c.Width <= 0 {
		return DefaultColumnWidth
	}
	return c.Width
}

// EntityID implements Entity.
func (c Column) EntityID() string { return string(c.ID) }

// EntityPosition implements Entity.
func (c Column) EntityPosition() int { return c.Position }

// WithPosition returns a copy with the position replaced.
func (c Column) WithPosition(pos int) Column {
	c.Position = pos
	return c
}

// Clone returns a deep copy. Options are the only shared backing store.
func (c Column) Clone() Column {
	c.Property.Options = cloneOptions(c.Property.Options)
	return c
}

// Row is a table row (a requirement in the source domain). Fields maps
// column identity to cell value; columns without a value are absent.
type Row struct {
	ID       RowID                  `json:"id"`
	Position int                    `json:"position"`
	Fields   map[ColumnID]CellValue `json:"fields,omitempty"`
}

// EntityID implements Entity.
func (r Row) EntityID() string { return string(r.ID) }

// EntityPosition implements Entity.
func (r Row) EntityPosition() int { return r.Position }

// WithPosition returns a copy with the position replaced.
func (r Row) WithPosition(pos int) Row {
	r.Position = pos
	return r
}

// Clone returns a deep copy, including the fields map and any
// multi-select slices inside it.
func (r Row) Clone() Row {
	if r.Fields == nil {
		return r
	}
	fields := make(map[ColumnID]CellValue, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = cloneCellValue(v)
	}
	r.Fields = fields
	return r
}

// Entity is the constraint shared by Column and Row so the overlay can
// manage either. Clone and WithPosition return copies; callers rely on
// that to avoid aliasing shared maps and slices.
type Entity[E any] interface {
	EntityID() string
	EntityPosition() int
	WithPosition(pos int) E
	Clone() E
}

func cloneOptions(options []string) []string {
	if options == nil {
		return nil
	}
	out := make([]string, len(options))
	copy(out, options)
	return out
}
