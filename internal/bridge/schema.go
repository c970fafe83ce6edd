package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// validator checks documents against an optional JSON schema.
type validator struct {
	resolved *jsonschema.Resolved
}

func newValidator(schema *jsonschema.Schema) (*validator, error) {
	if schema == nil {
		return &validator{}, nil
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema: %w", err)
	}

	return &validator{resolved: resolved}, nil
}

// validateValue checks an already decoded JSON value.
func (v *validator) validateValue(value any) error {
	if v.resolved == nil {
		return nil
	}

	return v.resolved.Validate(value)
}

// validatePayload checks an arbitrary Go value by round-tripping it through
// JSON, which is how the worker will see it.
func (v *validator) validatePayload(payload any) error {
	if v.resolved == nil {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}

	return v.resolved.Validate(value)
}
