package logging

// Config defines the logging section of the configuration file.
type Config struct {
	// Level is the minimum level to output ("debug", "info", "warn", "error").
	// Can be overridden by the SAGRADA_LOG_LEVEL environment variable.
	Level string `yaml:"level" env:"LOG_LEVEL"`

	// Format is "text" (default) or "json".
	Format string `yaml:"format" env:"LOG_FORMAT"`

	// File, when set, receives the log output instead of stderr.
	File string `yaml:"file" env:"LOG_FILE"`

	// ReportCaller includes file and line of the call site.
	ReportCaller bool `yaml:"report_caller" env:"LOG_CALLER"`
}
