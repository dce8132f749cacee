package config

// ServiceConfig is the lifecycle every configuration section supports.
// Sections pass through the same four stages so file values, environment
// values, and defaults always combine in one order.
type ServiceConfig interface {
	// ApplyDefaults replaces zero values with the section's defaults.
	ApplyDefaults()

	// ApplyEnvOverrides lets environment variables replace loaded values.
	ApplyEnvOverrides()

	// ResolvePaths rewrites relative paths against baseDir so behavior
	// does not depend on the working directory.
	ResolvePaths(baseDir string)

	// Validate checks the assembled section and reports the first problem.
	Validate() error
}

// ApplyServiceConfigs runs the lifecycle over each section in order and
// stops at the first validation failure.
func ApplyServiceConfigs(baseDir string, configs ...ServiceConfig) error {
	for _, cfg := range configs {
		cfg.ApplyDefaults()
		cfg.ApplyEnvOverrides()
		cfg.ResolvePaths(baseDir)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	return nil
}
