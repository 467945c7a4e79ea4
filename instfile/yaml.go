package instfile

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"groups/solver"
)

// DecodeYAML reads an instance written as YAML with the field names of
// solver.InstanceData. Unknown fields are rejected.
func DecodeYAML(r io.Reader) (*solver.Instance, error) {
	var d solver.InstanceData
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, &solver.ParseError{Field: "yaml", Index: -1, Msg: err.Error()}
	}
	return solver.NewInstance(d)
}

// EncodeYAML writes inst as YAML.
func EncodeYAML(w io.Writer, inst *solver.Instance) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(inst.Data()); err != nil {
		return fmt.Errorf("encode instance: %w", err)
	}
	return enc.Close()
}
