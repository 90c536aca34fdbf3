package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadError reports an app file that failed validation.
type LoadError struct {
	Path   string
	Errors []ValidationError
}

func (e *LoadError) Error() string {
	var b strings.Builder
	if e.Path != "" {
		fmt.Fprintf(&b, "%s: ", e.Path)
	}
	fmt.Fprintf(&b, "%d validation error(s)", len(e.Errors))
	for _, ve := range e.Errors {
		b.WriteString("\n  ")
		b.WriteString(ve.Error())
	}
	return b.String()
}

// Load reads and validates an app file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read app file: %w", err)
	}

	def, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
		}
		return nil, err
	}
	return def, nil
}

// Parse decodes and validates an app definition. Unknown fields are
// rejected.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse YAML: app file is empty")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if errs := def.Validate(); len(errs) > 0 {
		return nil, &LoadError{Errors: errs}
	}
	return &def, nil
}
