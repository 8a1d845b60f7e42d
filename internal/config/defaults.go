package config

const (
	defaultDataDir         = "~/.local/share/courier"
	defaultLogDir          = "~/.local/share/courier/logs"
	defaultSocketPath      = "~/.local/share/courier/courierd.sock"
	defaultMaxAttempts     = 3
	defaultDispatchTimeout = 30
	defaultUserAgent       = "Courier/0.1.0"
	defaultProbeURL        = "https://connectivitycheck.gstatic.com/generate_204"
	defaultProbeInterval   = 15
	defaultProbeTimeout    = 5
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			SocketPath: defaultSocketPath,
		},
		Delivery: Delivery{
			DefaultMaxAttempts: defaultMaxAttempts,
			DispatchTimeout:    defaultDispatchTimeout,
			UserAgent:          defaultUserAgent,
		},
		Connectivity: Connectivity{
			ProbeURL:      defaultProbeURL,
			ProbeInterval: defaultProbeInterval,
			ProbeTimeout:  defaultProbeTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
