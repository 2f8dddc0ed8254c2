package feed

import (
	"encoding/json"
	"fmt"

	"github.com/atoms-tech/gridsync/internal/grid"
)

// EntityKind names which half of a grid a notice or snapshot covers.
type EntityKind string

const (
	KindColumns EntityKind = "columns"
	KindRows    EntityKind = "rows"
)

// Refresh is a lightweight invalidation notice. It carries no data; the
// receiver pulls the authoritative snapshot itself.
type Refresh struct {
	Table grid.TableID `json:"table"`
	Kind  EntityKind   `json:"kind"`
}

// SnapshotMessage is the websocket frame pushed to remote sessions. Exactly
// one of Columns or Rows is populated, selected by Kind.
type SnapshotMessage struct {
	Table   grid.TableID  `json:"table"`
	Kind    EntityKind    `json:"kind"`
	Columns []grid.Column `json:"columns,omitempty"`
	Rows    []grid.Row    `json:"rows,omitempty"`
}

// EncodeSnapshot marshals a snapshot frame for the wire.
func EncodeSnapshot(msg SnapshotMessage) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot unmarshals a snapshot frame received from the wire.
func DecodeSnapshot(data []byte) (SnapshotMessage, error) {
	var msg SnapshotMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SnapshotMessage{}, fmt.Errorf("decode snapshot: %w", err)
	}
	switch msg.Kind {
	case KindColumns, KindRows:
	default:
		return SnapshotMessage{}, fmt.Errorf("decode snapshot: unknown kind %q", msg.Kind)
	}
	return msg, nil
}
