package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/apicentric/pulsed/pkg/service"
)

// Common errors for definition loading.
var (
	ErrFileNotFound = errors.New("definition file not found")
	ErrEmptyFile    = errors.New("definition file is empty")
	ErrInvalidJSON  = errors.New("invalid JSON syntax")
	ErrInvalidYAML  = errors.New("invalid YAML syntax")
)

// LoadFromFile reads one service definition from a JSON or YAML file. The
// format is picked by extension (.yaml/.yml for YAML, JSON otherwise). The
// returned definition is validated and normalized.
func LoadFromFile(path string) (*service.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		return ParseYAML(data)
	}
	return ParseJSON(data)
}

// ParseYAML parses, validates and normalizes a YAML definition.
func ParseYAML(data []byte) (*service.Definition, error) {
	var def service.Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return finish(&def)
}

// ParseJSON parses, validates and normalizes a JSON definition.
func ParseJSON(data []byte) (*service.Definition, error) {
	if !json.Valid(data) {
		return nil, ErrInvalidJSON
	}
	var def service.Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return finish(&def)
}

func finish(def *service.Definition) (*service.Definition, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	def.Normalize()
	return def, nil
}
