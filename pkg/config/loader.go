package config

import (
	"os"

	"github.com/kkyr/fig"
)

const EnvPrefix = "SKETCHCAST"

// LoadConfig loads a configuration file into the given struct.
// The path param specifies a custom directory with the config.yaml file.
// Reads and puts environment variables with the prefix SKETCHCAST_.
// Params from the config should be in uppercase separated with _.
func LoadConfig(config any, path string) error {
	dirs := []string{path}
	if path == "" {
		dirs = []string{".", "configs", "../../configs"}
		if home, err := os.UserHomeDir(); err == nil {
			dirs = append(dirs, home+"/.sketchcast")
		}
	}
	return fig.Load(config, fig.Dirs(dirs...), fig.UseEnv(EnvPrefix))
}
