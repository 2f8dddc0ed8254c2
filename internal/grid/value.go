package grid

import (
	"encoding/json"
	"fmt"
	"time"
)

// CellValue is a sealed interface representing the closed set of cell
// value types. Only CellText, CellNumber, CellDate, CellSelect, and
// CellMultiSelect implement it.
type CellValue interface {
	Kind() PropertyKind
	cellValue() // Sealed - only these types implement it
}

// CellText is a free-text cell value.
type CellText string

func (CellText) cellValue()         {}
func (CellText) Kind() PropertyKind { return KindText }

// CellNumber is a numeric cell value.
type CellNumber float64

func (CellNumber) cellValue()         {}
func (CellNumber) Kind() PropertyKind { return KindNumber }

// CellDate is an ISO 8601 calendar date ("2006-01-02").
type CellDate string

func (CellDate) cellValue()         {}
func (CellDate) Kind() PropertyKind { return KindDate }

// Time parses the date. Returns an error for anything that is not a
// plain calendar date.
func (d CellDate) Time() (time.Time, error) {
	return time.Parse(time.DateOnly, string(d))
}

// CellSelect is a single-select option value.
type CellSelect string

func (CellSelect) cellValue()         {}
func (CellSelect) Kind() PropertyKind { return KindSelect }

// CellMultiSelect is a multi-select option set, in display order.
type CellMultiSelect []string

func (CellMultiSelect) cellValue()         {}
func (CellMultiSelect) Kind() PropertyKind { return KindMultiSelect }

func cloneCellValue(v CellValue) CellValue {
	if ms, ok := v.(CellMultiSelect); ok {
		out := make(CellMultiSelect, len(ms))
		copy(out, ms)
		return out
	}
	return v
}

// cellEnvelope is the wire form of a CellValue: a kind tag plus the raw
// value. Used by the store, the HTTP API, and the snapshot feed.
type cellEnvelope struct {
	Kind  PropertyKind    `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// EncodeCellValue serializes a cell value to its tagged JSON envelope.
func EncodeCellValue(v CellValue) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("encode cell value: nil value")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode cell value: %w", err)
	}
	return json.Marshal(cellEnvelope{Kind: v.Kind(), Value: raw})
}

// DecodeCellValue parses a tagged JSON envelope back into a CellValue.
// Unknown kinds and mismatched value shapes are errors; callers at
// snapshot boundaries drop the offending cell rather than failing the
// whole snapshot.
func DecodeCellValue(data []byte) (CellValue, error) {
	var env cellEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode cell value: %w", err)
	}
	return decodeCell(env.Kind, env.Value)
}

func decodeCell(kind PropertyKind, raw json.RawMessage) (CellValue, error) {
	switch kind {
	case KindText:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode text cell: %w", err)
		}
		return CellText(s), nil
	case KindNumber:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("decode number cell: %w", err)
		}
		return CellNumber(n), nil
	case KindDate:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode date cell: %w", err)
		}
		if _, err := CellDate(s).Time(); err != nil {
			return nil, fmt.Errorf("decode date cell: %w", err)
		}
		return CellDate(s), nil
	case KindSelect:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode select cell: %w", err)
		}
		return CellSelect(s), nil
	case KindMultiSelect:
		var vals []string
		if err := json.Unmarshal(raw, &vals); err != nil {
			return nil, fmt.Errorf("decode multi-select cell: %w", err)
		}
		return CellMultiSelect(vals), nil
	default:
		return nil, fmt.Errorf("decode cell value: unknown kind %q", kind)
	}
}

// MarshalJSON implements json.Marshaler so rows serialize fields as
// tagged envelopes.
func (r Row) MarshalJSON() ([]byte, error) {
	type rowWire struct {
		ID       RowID                        `json:"id"`
		Position int                          `json:"position"`
		Fields   map[ColumnID]json.RawMessage `json:"fields,omitempty"`
	}
	wire := rowWire{ID: r.ID, Position: r.Position}
	if len(r.Fields) > 0 {
		wire.Fields = make(map[ColumnID]json.RawMessage, len(r.Fields))
		for col, val := range r.Fields {
			enc, err := EncodeCellValue(val)
			if err != nil {
				return nil, fmt.Errorf("row %s, column %s: %w", r.ID, col, err)
			}
			wire.Fields[col] = enc
		}
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler. Cells that fail to decode
// are dropped individually; the row itself still parses. Partial data
// from a loosely typed persistence layer must not fail a snapshot.
func (r *Row) UnmarshalJSON(data []byte) error {
	type rowWire struct {
		ID       RowID                        `json:"id"`
		Position int                          `json:"position"`
		Fields   map[ColumnID]json.RawMessage `json:"fields"`
	}
	var wire rowWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	r.ID = wire.ID
	r.Position = wire.Position
	r.Fields = nil
	if len(wire.Fields) > 0 {
		r.Fields = make(map[ColumnID]CellValue, len(wire.Fields))
		for col, raw := range wire.Fields {
			val, err := DecodeCellValue(raw)
			if err != nil {
				continue
			}
			r.Fields[col] = val
		}
	}
	return nil
}
