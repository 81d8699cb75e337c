package skylight

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the on-disk application configuration, typically skylight.toml.
type Config struct {
	App     AppConfig       `toml:"app"`
	Windows []WindowOptions `toml:"windows"`
}

// LoadConfig reads a TOML configuration file. Window entries start from
// DefaultWindowOptions so omitted fields keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Decode once to learn how many window tables there are, then re-decode
	// over defaults.
	var probe struct {
		Windows []map[string]any `toml:"windows"`
	}
	if err := toml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg := &Config{App: DefaultAppConfig()}
	cfg.Windows = make([]WindowOptions, len(probe.Windows))
	for i := range cfg.Windows {
		cfg.Windows[i] = DefaultWindowOptions()
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
