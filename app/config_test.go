package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "splatview.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigMissingFileGivesDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeTempConfig(t, `
window_width = 1920
window_height = 1080
vsync = false
camera_distance = 7.5
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1920, config.WindowWidth)
	assert.Equal(t, 1080, config.WindowHeight)
	assert.False(t, config.Vsync)
	assert.InDelta(t, 7.5, config.CameraDist, 1e-6)

	// Untouched fields keep their defaults.
	assert.True(t, config.Overlay)
	assert.InDelta(t, 60, config.CameraFovDeg, 1e-6)
}

func TestLoadConfigMalformed(t *testing.T) {
	path := writeTempConfig(t, `window_width = "wide"`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	for _, content := range []string{
		"window_width = -1",
		"window_height = 0",
		"camera_distance = 0.0",
		"camera_fov_deg = 200.0",
	} {
		path := writeTempConfig(t, content)
		_, err := LoadConfig(path)
		assert.Error(t, err, content)
	}
}
