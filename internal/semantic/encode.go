package semantic

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

var ErrModelTooLarge = errors.New("semantic: encoded model exceeds budget")

// Budget caps the generated document so it fits the analyst's context
// window. Zero values disable the respective limit.
type Budget struct {
	MaxFacts int
	MaxBytes int
}

func EncodeYAML(m Model) ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(m); err != nil {
		return nil, fmt.Errorf("encode semantic model: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("close yaml encoder: %w", err)
	}
	return buf.Bytes(), nil
}

func (b Budget) Check(encoded []byte, factCount int) error {
	if b.MaxFacts > 0 && factCount > b.MaxFacts {
		return fmt.Errorf("%w: %d facts, limit %d", ErrModelTooLarge, factCount, b.MaxFacts)
	}
	if b.MaxBytes > 0 && len(encoded) > b.MaxBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrModelTooLarge, len(encoded), b.MaxBytes)
	}
	return nil
}
