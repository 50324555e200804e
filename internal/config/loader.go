// Package config resolves a directory of process definitions into the
// supervisor.ProcessSpec list the core consumes. Loading and validating
// the YAML/JSON on disk is this package's job; the supervisor itself
// never touches a config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sentinel-dev/sentinel-core/internal/supervisor"
)

// FileName is the process-definitions file looked for in a config dir.
const FileName = "processes.yaml"

// processFile is the on-disk shape of a processes.yaml file.
type processFile struct {
	Processes []supervisor.ProcessSpec `yaml:"processes"`
}

// Load reads processes.yaml from userConfigDir and, if present, from
// projectDir/.sentinel, merging by name with the project definition
// taking precedence over a same-named user one. Cwd defaults to
// projectDir when a spec leaves it blank. Returns a resolved,
// deduplicated list ready for supervisor.Spawn.
func Load(userConfigDir, projectDir string) ([]supervisor.ProcessSpec, error) {
	userSpecs, err := loadFile(filepath.Join(userConfigDir, FileName))
	if err != nil {
		return nil, err
	}
	projectSpecs, err := loadFile(filepath.Join(projectDir, ".sentinel", FileName))
	if err != nil {
		return nil, err
	}

	byName := make(map[string]supervisor.ProcessSpec, len(userSpecs)+len(projectSpecs))
	var order []string
	for _, s := range userSpecs {
		if _, ok := byName[s.Name]; !ok {
			order = append(order, s.Name)
		}
		byName[s.Name] = resolve(s, projectDir)
	}
	for _, s := range projectSpecs {
		if _, ok := byName[s.Name]; !ok {
			order = append(order, s.Name)
		}
		byName[s.Name] = resolve(s, projectDir)
	}

	out := make([]supervisor.ProcessSpec, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out, nil
}

func resolve(s supervisor.ProcessSpec, projectDir string) supervisor.ProcessSpec {
	if s.Cwd == "" {
		s.Cwd = projectDir
	}
	return s
}

func loadFile(path string) ([]supervisor.ProcessSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var pf processFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	for _, s := range pf.Processes {
		if s.Name == "" {
			return nil, fmt.Errorf("config: %s: process entry missing name", path)
		}
	}
	return pf.Processes, nil
}
