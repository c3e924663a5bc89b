// Package config loads the registry server's environment-variable
// configuration, following the same GetEnv helper style the teacher's
// shared config package uses for its own services.
package config

import "os"

// GetEnv returns an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// Config holds everything cmd/registry needs to construct a Gateway.
type Config struct {
	// StorageRoot is the ObjectStore's root directory.
	StorageRoot string
	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string
	// BearerToken guards write endpoints. Empty disables auth entirely,
	// useful for local development; production deployments must set it.
	BearerToken string
	// PublicKeyFile points at a PEM-encoded secp256k1 public key used to
	// verify uploads. Empty disables signature verification.
	PublicKeyFile string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// Load reads configuration from the environment, applying the same
// MEMFLOW_-prefixed convention throughout.
func Load() Config {
	return Config{
		StorageRoot:   GetEnv("MEMFLOW_STORAGE_ROOT", ".storage"),
		Addr:          GetEnv("MEMFLOW_ADDR", "0.0.0.0:3000"),
		BearerToken:   GetEnv("MEMFLOW_BEARER_TOKEN", ""),
		PublicKeyFile: GetEnv("MEMFLOW_PUBLIC_KEY_FILE", ""),
		LogLevel:      GetEnv("MEMFLOW_LOG_LEVEL", "info"),
	}
}
