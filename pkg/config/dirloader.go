package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apicentric/pulsed/pkg/service"
)

// LoadError reports a file that could not be loaded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadResult is the outcome of loading a directory.
type LoadResult struct {
	Definitions []*service.Definition
	Errors      []LoadError
}

// LoadDirectory loads every definition file under dir (sorted by path, so
// loading order is stable). A file that fails to parse or validate is
// recorded in Errors and skipped. Cross-definition collisions on service
// name or port reject the later file.
func LoadDirectory(dir string) (*LoadResult, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json", ".yaml", ".yml":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(files)

	result := &LoadResult{}
	names := make(map[string]string)
	ports := make(map[int]string)

	for _, path := range files {
		def, err := LoadFromFile(path)
		if err != nil {
			result.Errors = append(result.Errors, LoadError{Path: path, Err: err})
			continue
		}
		if prev, ok := names[def.Name]; ok {
			result.Errors = append(result.Errors, LoadError{
				Path: path,
				Err:  fmt.Errorf("duplicate service name %q, already defined in %s", def.Name, prev),
			})
			continue
		}
		if def.Port != 0 {
			if prev, ok := ports[def.Port]; ok {
				result.Errors = append(result.Errors, LoadError{
					Path: path,
					Err:  fmt.Errorf("duplicate port %d, already used by %s", def.Port, prev),
				})
				continue
			}
			ports[def.Port] = path
		}
		names[def.Name] = path
		result.Definitions = append(result.Definitions, def)
	}
	return result, nil
}
