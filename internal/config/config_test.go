package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMainDefaults(t *testing.T) {
	main := Empty().LoadMain()

	assert.Equal(t, "Unknown OS", main.Osname)
	assert.Equal(t, "/etc/airup.d", main.AirupHome)
	assert.Equal(t, DontSetupSentinel, main.EnvPath)
	assert.False(t, main.PrestartParal)
}

func TestLoadMainOverridesAndTypeMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "airup.conf")
	require.NoError(t, os.WriteFile(path, []byte(
		"[airup]\nosname = \"Test OS\"\nprestart_paral = true\nairup_home = 123\n",
	), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)

	main := doc.LoadMain()
	assert.Equal(t, "Test OS", main.Osname)
	assert.True(t, main.PrestartParal)
	// airup_home was declared as an int in the file, which mismatches the
	// registered string default, so the default wins.
	assert.Equal(t, "/etc/airup.d", main.AirupHome)
}

func TestGetUnknownKey(t *testing.T) {
	_, ok := Empty().Get("airup", "nonexistent")
	assert.False(t, ok)
}

func TestLoadServiceDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sshd.svc")
	require.NoError(t, os.WriteFile(path, []byte("exec = \"/usr/sbin/sshd -D\"\n"), 0o644))

	svc, err := LoadService(path)
	require.NoError(t, err)

	assert.Equal(t, "sshd", svc.ID)
	assert.Equal(t, "sshd", svc.Prompt)
	assert.Equal(t, "An airup service", svc.Description)
	assert.True(t, svc.TakeIO)
	assert.True(t, svc.CleanupOnRestart)
	assert.Equal(t, 3, svc.RetryTime)
	assert.Equal(t, 5000, svc.KillTimeoutMS)
	assert.False(t, svc.HasReadyTimeout)
	assert.False(t, svc.User.IsName())
	assert.Equal(t, uint32(0), svc.User.UID())
	assert.Equal(t, svc.User, svc.ActionUser)
}

func TestLoadServiceMissingExecIsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.svc")
	require.NoError(t, os.WriteFile(path, []byte("prompt = \"broken\"\n"), 0o644))

	_, err := LoadService(path)
	assert.Error(t, err)
}

func TestLoadServiceExplicitValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "web.svc")
	require.NoError(t, os.WriteFile(path, []byte(
		"exec = \"web-server\"\n"+
			"user = \"www-data\"\n"+
			"stop_way = 2\n"+
			"ready_timeout = 500\n"+
			"dependencies = [\"network\"]\n",
	), 0o644))

	svc, err := LoadService(path)
	require.NoError(t, err)

	assert.True(t, svc.User.IsName())
	assert.Equal(t, "www-data", svc.User.String())
	assert.False(t, svc.StopWay.IsCommand())
	assert.True(t, svc.HasReadyTimeout)
	assert.Equal(t, 500, svc.ReadyTimeoutMS)
	assert.Equal(t, []string{"network"}, svc.Dependencies)
}

func TestLoadMilestoneDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "milestone.toml"), []byte(""), 0o644))

	ms, err := LoadMilestone(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Base(dir), ms.Prompt)
	assert.Equal(t, "An airup milestone", ms.Description)
	assert.True(t, ms.Paral)
	assert.False(t, ms.HasPreExec)
}

func TestLoadMilestoneExplicitValues(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "milestone.toml"), []byte(
		"paral = false\npre_exec = \"echo hi\"\ndependencies = [\"early\"]\n",
	), 0o644))

	ms, err := LoadMilestone(dir)
	require.NoError(t, err)

	assert.False(t, ms.Paral)
	assert.True(t, ms.HasPreExec)
	assert.Equal(t, "echo hi", ms.PreExec)
	assert.Equal(t, []string{"early"}, ms.Dependencies)
}
