package config

import "go.uber.org/fx"

// NewProvider supplies cfg when given, validated the same way as a config
// loaded from the environment.
func NewProvider(cfg *Config) fx.Option {
	return fx.Provide(func() (*Config, error) {
		if cfg != nil {
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return cfg, nil
		}

		loaded := &Config{}
		if err := LoadConfig(loaded); err != nil {
			return nil, err
		}
		return loaded, nil
	})
}
