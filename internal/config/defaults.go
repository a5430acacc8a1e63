package config

// DefaultSender is the sender identity used when none is configured.
const DefaultSender = "io.github.ariel-frischer.alerter"

// GetDefaults returns the default configuration values.
// Empty directories are resolved to the platform cache/config dirs on Load.
func GetDefaults() map[string]interface{} {
	return map[string]interface{}{
		"sender":        DefaultSender,
		"title":         "Terminal",
		"json":          false,
		"sound":         "",
		"poll_interval": "200ms",
		"state_dir":     "",
		"app_dir":       "",
		"relaunch":      true,
		"debug":         false,
	}
}
