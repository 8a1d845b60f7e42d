package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

func (c *Config) normalize() error {
	for _, field := range []struct {
		name  string
		value *string
	}{
		{"data_dir", &c.Paths.DataDir},
		{"log_dir", &c.Paths.LogDir},
		{"socket_path", &c.Paths.SocketPath},
	} {
		trimmed := strings.TrimSpace(*field.value)
		if trimmed == "" {
			return fmt.Errorf("config: %s must not be empty", field.name)
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("config: expand %s: %w", field.name, err)
		}
		*field.value = expanded
	}

	c.Delivery.UserAgent = strings.TrimSpace(c.Delivery.UserAgent)
	if c.Delivery.UserAgent == "" {
		c.Delivery.UserAgent = defaultUserAgent
	}
	c.Connectivity.ProbeURL = strings.TrimSpace(c.Connectivity.ProbeURL)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

// Validate checks configuration invariants after normalization.
func (c *Config) Validate() error {
	var problems []string

	if c.Delivery.DefaultMaxAttempts < 0 {
		problems = append(problems, "delivery.default_max_attempts must not be negative")
	}
	if c.Delivery.DispatchTimeout <= 0 {
		problems = append(problems, "delivery.dispatch_timeout must be positive")
	}
	if !c.Connectivity.AssumeOnline {
		if c.Connectivity.ProbeURL == "" {
			problems = append(problems, "connectivity.probe_url must be set unless assume_online is enabled")
		} else if parsed, err := url.Parse(c.Connectivity.ProbeURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			problems = append(problems, fmt.Sprintf("connectivity.probe_url %q is not a valid URL", c.Connectivity.ProbeURL))
		}
		if c.Connectivity.ProbeInterval <= 0 {
			problems = append(problems, "connectivity.probe_interval must be positive")
		}
		if c.Connectivity.ProbeTimeout <= 0 {
			problems = append(problems, "connectivity.probe_timeout must be positive")
		}
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported (console, json)", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
