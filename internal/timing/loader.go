package timing

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML policy file. Sections missing from the file keep
// their built-in values.
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML policy bytes and validates the result.
func Parse(data []byte) (*Policy, error) {
	var raw Policy
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}

	p := Default()
	if raw.DefaultUrgency != "" {
		p.DefaultUrgency = raw.DefaultUrgency
	}
	if len(raw.Tiers) > 0 {
		p.Tiers = raw.Tiers
	}
	if len(raw.Rotations) > 0 {
		p.Rotations = raw.Rotations
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
