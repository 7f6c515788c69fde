package dictionary

import "context"

// DefaultColumn is the data-dictionary column carrying fact names.
const DefaultColumn = "ELEMENT_NUMBER"

// Source yields the fact names to select into a generated model.
type Source interface {
	FactNames(ctx context.Context) ([]string, error)
}
