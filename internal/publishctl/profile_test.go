package publishctl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfile_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "publishctl", "profile.yaml")

	require.NoError(t, SaveProfile(path, &Profile{APIURL: "https://api.example.com", APIKey: "sp_secret"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", p.APIURL)
	assert.Equal(t, "sp_secret", p.APIKey)
}

func TestProfile_Missing(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "profile.yaml"))
	assert.ErrorIs(t, err, ErrNoProfile)
}

func TestProfile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_url: [unclosed"), 0600))

	_, err := LoadProfile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse profile")
}

func TestDefaultProfilePath_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	path, err := DefaultProfilePath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/xdg/publishctl/profile.yaml", path)
}
