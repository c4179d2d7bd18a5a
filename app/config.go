package app

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the optional splatview.toml next to the binary. Every field has a
// working default; the file only overrides.
type Config struct {
	WindowWidth  int     `toml:"window_width"`
	WindowHeight int     `toml:"window_height"`
	Vsync        bool    `toml:"vsync"`
	Overlay      bool    `toml:"overlay"`
	Debug        bool    `toml:"debug"`
	CameraDist   float32 `toml:"camera_distance"`
	CameraFovDeg float32 `toml:"camera_fov_deg"`
	FontPath     string  `toml:"font_path"`
}

const configFile = "splatview.toml"

func DefaultConfig() Config {
	return Config{
		WindowWidth:  1280,
		WindowHeight: 720,
		Vsync:        true,
		Overlay:      true,
		Debug:        false,
		CameraDist:   5,
		CameraFovDeg: 60,
	}
}

// LoadConfig reads path, falling back to splatview.toml in the working
// directory when path is empty. A missing file yields the defaults; a
// malformed file is a startup error.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		path = configFile
	}

	config := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if config.WindowWidth <= 0 || config.WindowHeight <= 0 {
		return Config{}, fmt.Errorf("config %s: window size must be positive", path)
	}
	if config.CameraDist <= 0 {
		return Config{}, fmt.Errorf("config %s: camera_distance must be positive", path)
	}
	if config.CameraFovDeg <= 0 || config.CameraFovDeg >= 180 {
		return Config{}, fmt.Errorf("config %s: camera_fov_deg out of range", path)
	}
	return config, nil
}
