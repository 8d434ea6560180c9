package config

// Defaults returns the configuration used before the file and environment
// are applied.
func Defaults() *Config {
	return &Config{
		Slack: SlackConfig{
			TestChannel: "_autobot",
		},
		MISP: MISPConfig{
			SSL:            true,
			Priority:       0,
			TimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:           "debug",
			Format:          "text",
			OutputFile:      "./logs/sambot.log",
			OutputErrorFile: "./logs/sambot_error.log",
			MaxSizeMB:       10,
			MaxBackups:      5,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
			Path: "/slack/events",
		},
		Fetch: FetchConfig{
			TimeoutSeconds: 60,
			MaxBytes:       10 << 20,
		},
		Workers: WorkersConfig{
			MaxConcurrent: 8,
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}
