// Package fixtures loads engine inputs from YAML or JSON files.
//
// Rule tables, user contexts, meal plans and target snapshots are normally
// materialized by the surrounding application. Fixture files let the CLI and
// tests supply the same shapes from disk. The format is chosen by extension:
// .yaml/.yml decode with yaml.v3, .json with encoding/json. Decoded inputs are
// checked with validator struct tags before they reach the engine.
package fixtures

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/solatis/nutriprotocol/internal/types"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Format is a fixture encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", types.ErrUnsupportedFixture, path)
	}
}

// Decode unmarshals data in the given format into v.
func Decode(data []byte, format Format, v any) error {
	switch format {
	case FormatYAML:
		return yaml.Unmarshal(data, v)
	case FormatJSON:
		return json.Unmarshal(data, v)
	default:
		return fmt.Errorf("%w: %q", types.ErrUnsupportedFixture, format)
	}
}

// decodeFile reads path and decodes it by extension.
func decodeFile(path string, v any) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}

	if err := Decode(data, format, v); err != nil {
		return fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return nil
}

// checkStruct runs validator tags and wraps failures with the fixture path.
func checkStruct(path string, v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid fixture %s: %w", path, err)
	}
	return nil
}
