package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ParseYAML parses a YAML manifest. Unknown fields are errors.
func ParseYAML(name string, data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &Error{Field: "yaml", Message: name + " is empty"}
		}
		return nil, &Error{Field: "yaml", Message: fmt.Sprintf("%s: %v", name, err)}
	}
	return &m, nil
}
