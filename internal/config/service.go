package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/airup-project/airup/internal/action"
	"github.com/airup-project/airup/internal/identity"
)

// Service is the defaulted, typed view of a <name>.svc descriptor, per
// spec.md §3.
type Service struct {
	// ID is the file stem, e.g. "sshd" for "sshd.svc". Not a TOML field.
	ID string

	Prompt            string
	Description       string
	Exec              string
	User              identity.Identity
	ActionUser        identity.Identity
	EnvList           map[string]string
	TakeIO            bool
	PIDFile           string
	PreExec           string
	PreStop           string
	PreRestart        string
	Cleanup           string
	StopWay           action.Action
	RestartWay        action.Action
	CleanupOnRestart  bool
	RetryTime         int
	KillTimeoutMS     int
	ReadyTimeoutMS    int
	HasReadyTimeout   bool
	Dependencies      []string
}

// rawService is the shape TOML decodes a .svc file into before defaults and
// sum-type parsing are applied.
type rawService struct {
	Prompt           string         `toml:"prompt"`
	Description      string         `toml:"description"`
	Exec             string         `toml:"exec"`
	User             any            `toml:"user"`
	ActionUser       any            `toml:"action_user"`
	EnvList          map[string]string `toml:"env_list"`
	TakeIO           *bool          `toml:"take_io"`
	PIDFile          string         `toml:"pid_file"`
	PreExec          string         `toml:"pre_exec"`
	PreStop          string         `toml:"pre_stop"`
	PreRestart       string         `toml:"pre_restart"`
	Cleanup          string         `toml:"cleanup"`
	StopWay          any            `toml:"stop_way"`
	RestartWay       any            `toml:"restart_way"`
	CleanupOnRestart *bool          `toml:"cleanup_on_restart"`
	RetryTime        *int           `toml:"retry_time"`
	KillTimeout      *int           `toml:"kill_timeout"`
	ReadyTimeout     *int           `toml:"ready_timeout"`
	Dependencies     []string       `toml:"dependencies"`
}

// LoadService reads and defaults a .svc descriptor file. The file stem
// (without extension) becomes the Service ID and the default Prompt.
func LoadService(path string) (Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Service{}, fmt.Errorf("config: reading service descriptor %s: %w", path, err)
	}

	var raw rawService

	if err := toml.Unmarshal(data, &raw); err != nil {
		return Service{}, fmt.Errorf("config: parsing service descriptor %s: %w", path, err)
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	if raw.Exec == "" {
		return Service{}, fmt.Errorf("config: service descriptor %s: exec is required", path)
	}

	user, err := identity.ParseTOMLValue(raw.User)
	if err != nil {
		return Service{}, fmt.Errorf("config: service descriptor %s: user: %w", path, err)
	}

	actionUser := user

	if raw.ActionUser != nil {
		actionUser, err = identity.ParseTOMLValue(raw.ActionUser)
		if err != nil {
			return Service{}, fmt.Errorf("config: service descriptor %s: action_user: %w", path, err)
		}
	}

	stopWay, err := action.ParseTOMLValue(raw.StopWay)
	if err != nil {
		return Service{}, fmt.Errorf("config: service descriptor %s: stop_way: %w", path, err)
	}

	restartWay := stopWay

	if raw.RestartWay != nil {
		restartWay, err = action.ParseTOMLValue(raw.RestartWay)
		if err != nil {
			return Service{}, fmt.Errorf("config: service descriptor %s: restart_way: %w", path, err)
		}
	}

	svc := Service{
		ID:               stem,
		Prompt:           orDefault(raw.Prompt, stem),
		Description:      orDefault(raw.Description, "An airup service"),
		Exec:             raw.Exec,
		User:             user,
		ActionUser:       actionUser,
		EnvList:          raw.EnvList,
		TakeIO:           boolOrDefault(raw.TakeIO, true),
		PIDFile:          raw.PIDFile,
		PreExec:          raw.PreExec,
		PreStop:          raw.PreStop,
		PreRestart:       raw.PreRestart,
		Cleanup:          raw.Cleanup,
		StopWay:          stopWay,
		RestartWay:       restartWay,
		CleanupOnRestart: boolOrDefault(raw.CleanupOnRestart, true),
		RetryTime:        intOrDefault(raw.RetryTime, 3),
		KillTimeoutMS:    intOrDefault(raw.KillTimeout, 5000),
		Dependencies:     raw.Dependencies,
	}

	if raw.ReadyTimeout != nil {
		svc.ReadyTimeoutMS = *raw.ReadyTimeout
		svc.HasReadyTimeout = true
	}

	return svc, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}

	return v
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}

	return *v
}

func intOrDefault(v *int, def int) int {
	if v == nil {
		return def
	}

	return *v
}
