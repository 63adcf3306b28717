package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for invalid or inconsistent values.
//
// Struct-level `validate` tags are checked first, then cross-field rules
// the tags cannot express (port range ordering, database settings).
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("configuration is nil")
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid value for %s (rule: %s)", first.Namespace(), first.Tag())
		}
		return err
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if cfg.Engine.PortRangeStart > cfg.Engine.PortRangeEnd {
		return fmt.Errorf("engine: port_range_start %d is above port_range_end %d",
			cfg.Engine.PortRangeStart, cfg.Engine.PortRangeEnd)
	}
	if cfg.Engine.PortRangeStart < 1 || cfg.Engine.PortRangeEnd > 65535 {
		return fmt.Errorf("engine: port range %d-%d is outside 1-65535",
			cfg.Engine.PortRangeStart, cfg.Engine.PortRangeEnd)
	}

	return nil
}
