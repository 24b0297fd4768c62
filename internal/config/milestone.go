package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Milestone is the defaulted, typed view of a milestone.toml descriptor,
// per spec.md §3.
type Milestone struct {
	// Dir is the milestone directory this descriptor was loaded from. Not a
	// TOML field.
	Dir string

	Prompt       string
	Description  string
	Paral        bool
	EnvList      map[string]string
	PreExec      string
	HasPreExec   bool
	Dependencies []string
}

type rawMilestone struct {
	Prompt       string            `toml:"prompt"`
	Description  string            `toml:"description"`
	Paral        *bool             `toml:"paral"`
	EnvList      map[string]string `toml:"env_list"`
	PreExec      *string           `toml:"pre_exec"`
	Dependencies []string          `toml:"dependencies"`
}

// LoadMilestone reads and defaults the milestone.toml file inside dir.
func LoadMilestone(dir string) (Milestone, error) {
	path := filepath.Join(dir, "milestone.toml")

	data, err := os.ReadFile(path)
	if err != nil {
		return Milestone{}, fmt.Errorf("config: reading milestone descriptor %s: %w", path, err)
	}

	var raw rawMilestone

	if err := toml.Unmarshal(data, &raw); err != nil {
		return Milestone{}, fmt.Errorf("config: parsing milestone descriptor %s: %w", path, err)
	}

	ms := Milestone{
		Dir:          dir,
		Prompt:       orDefault(raw.Prompt, filepath.Base(dir)),
		Description:  orDefault(raw.Description, "An airup milestone"),
		Paral:        boolOrDefault(raw.Paral, true),
		EnvList:      raw.EnvList,
		Dependencies: raw.Dependencies,
	}

	if raw.PreExec != nil {
		ms.PreExec = *raw.PreExec
		ms.HasPreExec = true
	}

	return ms, nil
}
