package fieldvault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Run("full configuration", func(t *testing.T) {
		t.Setenv(EnvTransitPath, "custom-transit")
		t.Setenv(EnvTransitKey, "documents")
		t.Setenv(EnvEnableEncryption, "true")
		t.Setenv(EnvSchemaPath, "/etc/fieldvault/schema.yaml")

		cfg, err := LoadConfigFromEnvironment()
		require.NoError(t, err)
		assert.Equal(t, "custom-transit", cfg.TransitPath)
		assert.Equal(t, "documents", cfg.TransitKey)
		assert.True(t, cfg.EnableEncryption)
		assert.Equal(t, "/etc/fieldvault/schema.yaml", cfg.SchemaPath)
	})

	t.Run("transit path defaults", func(t *testing.T) {
		t.Setenv(EnvTransitPath, "")
		t.Setenv(EnvTransitKey, "documents")
		t.Setenv(EnvEnableEncryption, "true")
		t.Setenv(EnvSchemaPath, "schema.yaml")

		cfg, err := LoadConfigFromEnvironment()
		require.NoError(t, err)
		assert.Equal(t, DefaultTransitPath, cfg.TransitPath)
	})

	t.Run("disabled skips validation", func(t *testing.T) {
		t.Setenv(EnvTransitPath, "")
		t.Setenv(EnvTransitKey, "")
		t.Setenv(EnvEnableEncryption, "false")
		t.Setenv(EnvSchemaPath, "")

		cfg, err := LoadConfigFromEnvironment()
		require.NoError(t, err)
		assert.False(t, cfg.EnableEncryption)
	})

	t.Run("invalid boolean", func(t *testing.T) {
		t.Setenv(EnvEnableEncryption, "maybe")

		_, err := LoadConfigFromEnvironment()
		assert.ErrorContains(t, err, EnvEnableEncryption)
	})

	t.Run("missing required settings", func(t *testing.T) {
		t.Setenv(EnvTransitPath, "transit")
		t.Setenv(EnvTransitKey, "")
		t.Setenv(EnvEnableEncryption, "true")
		t.Setenv(EnvSchemaPath, "")

		_, err := LoadConfigFromEnvironment()
		require.Error(t, err)
		assert.ErrorContains(t, err, "transit key")
		assert.ErrorContains(t, err, "schema path")
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg: Config{
				TransitPath:      "transit",
				TransitKey:       "documents",
				EnableEncryption: true,
				SchemaPath:       "schema.yaml",
			},
		},
		{
			name: "disabled needs nothing",
			cfg:  Config{EnableEncryption: false},
		},
		{
			name: "blank transit path",
			cfg: Config{
				TransitPath:      "  ",
				TransitKey:       "documents",
				EnableEncryption: true,
				SchemaPath:       "schema.yaml",
			},
			wantErr: true,
		},
		{
			name: "missing schema path",
			cfg: Config{
				TransitPath:      "transit",
				TransitKey:       "documents",
				EnableEncryption: true,
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
