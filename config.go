package fieldvault

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hengadev/errsx"
)

// Environment variable names recognized by LoadConfigFromEnvironment.
const (
	EnvTransitPath      = "FIELDVAULT_TRANSIT_PATH"
	EnvTransitKey       = "FIELDVAULT_TRANSIT_KEY"
	EnvEnableEncryption = "FIELDVAULT_ENABLE_ENCRYPTION"
	EnvSchemaPath       = "FIELDVAULT_SCHEMA_PATH"
)

// Defaults applied when the optional variables are unset.
const (
	DefaultTransitPath = "transit"
)

// Config holds the settings of the encryption layer.
type Config struct {
	// TransitPath is the mount path of the transit secrets engine.
	TransitPath string

	// TransitKey is the name of the versioned transit key.
	TransitKey string

	// EnableEncryption is the master switch. When false, interceptor
	// callbacks return entities unchanged and no key is ever fetched.
	EnableEncryption bool

	// SchemaPath locates the encryption schema resource (YAML or JSON).
	SchemaPath string
}

// LoadConfigFromEnvironment reads configuration from the environment,
// following the 12-factor convention. FIELDVAULT_TRANSIT_KEY and
// FIELDVAULT_SCHEMA_PATH are required when encryption is enabled.
func LoadConfigFromEnvironment() (Config, error) {
	enabled := true
	if raw := os.Getenv(EnvEnableEncryption); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%s must be a boolean, got %q", EnvEnableEncryption, raw)
		}
		enabled = parsed
	}

	cfg := Config{
		TransitPath:      getEnvOrDefault(EnvTransitPath, DefaultTransitPath),
		TransitKey:       os.Getenv(EnvTransitKey),
		EnableEncryption: enabled,
		SchemaPath:       os.Getenv(EnvSchemaPath),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration, collecting every problem before
// reporting.
func (c Config) Validate() error {
	var errs errsx.Map
	if !c.EnableEncryption {
		return nil
	}
	if strings.TrimSpace(c.TransitPath) == "" {
		errs.Set("transit path", fmt.Errorf("must not be empty"))
	}
	if strings.TrimSpace(c.TransitKey) == "" {
		errs.Set("transit key", fmt.Errorf("must not be empty"))
	}
	if strings.TrimSpace(c.SchemaPath) == "" {
		errs.Set("schema path", fmt.Errorf("must not be empty"))
	}
	return errs.AsError()
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
