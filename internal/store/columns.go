package store

import (
	"encoding/json"
	"fmt"

	"github.com/inamate/inkboard/internal/artifact"
)

// encodedColumns holds the JSON content columns of an artifact row.
type encodedColumns struct {
	shapes      []byte
	annotations []byte
	metadata    []byte
}

func encodeArtifact(a *artifact.Artifact) (encodedColumns, error) {
	var cols encodedColumns
	var err error
	if cols.shapes, err = json.Marshal(a.Shapes); err != nil {
		return cols, fmt.Errorf("marshal shapes: %w", err)
	}
	if cols.annotations, err = json.Marshal(a.Annotations); err != nil {
		return cols, fmt.Errorf("marshal annotations: %w", err)
	}
	if cols.metadata, err = json.Marshal(a.Metadata); err != nil {
		return cols, fmt.Errorf("marshal metadata: %w", err)
	}
	return cols, nil
}

func (c encodedColumns) decodeInto(a *artifact.Artifact) error {
	if err := json.Unmarshal(c.shapes, &a.Shapes); err != nil {
		return fmt.Errorf("unmarshal shapes: %w", err)
	}
	if err := json.Unmarshal(c.annotations, &a.Annotations); err != nil {
		return fmt.Errorf("unmarshal annotations: %w", err)
	}
	if err := json.Unmarshal(c.metadata, &a.Metadata); err != nil {
		return fmt.Errorf("unmarshal metadata: %w", err)
	}
	return nil
}

func decodeEventMetadata(data []byte, ev *artifact.Event) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, &ev.Metadata); err != nil {
		return fmt.Errorf("unmarshal event metadata: %w", err)
	}
	return nil
}
