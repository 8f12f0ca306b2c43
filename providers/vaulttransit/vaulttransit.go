// Package vaulttransit implements fieldvault.KeyExporter against HashiCorp
// Vault's transit secrets engine. The transit key must be created with
// exportable=true; the engine's export endpoint is the only way to obtain raw
// key material.
package vaulttransit

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/hashicorp/vault/api"

	"github.com/hengadev/fieldvault/internal/fverr"
)

// Service exports versioned symmetric keys from a transit mount.
type Service struct {
	client *api.Client
	mount  string
	key    string
}

// New creates a Service for the named transit key. The Vault client is
// configured from the environment:
//
//   - VAULT_ADDR: Vault server address
//   - VAULT_NAMESPACE: namespace for HCP Vault (optional)
//   - VAULT_TOKEN: direct token auth
//   - VAULT_ROLE_ID / VAULT_SECRET_ID: AppRole auth
func New(mount, keyName string) (*Service, error) {
	if mount == "" || keyName == "" {
		return nil, fmt.Errorf("%w: transit mount and key name must be non-empty", fverr.ErrInvalidArgument)
	}

	config := api.DefaultConfig()
	if addr := os.Getenv("VAULT_ADDR"); addr != "" {
		config.Address = addr
	}
	config.HttpClient.Transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if namespace := os.Getenv("VAULT_NAMESPACE"); namespace != "" {
		client.SetNamespace(namespace)
	}

	roleID := os.Getenv("VAULT_ROLE_ID")
	secretID := os.Getenv("VAULT_SECRET_ID")
	if roleID != "" && secretID != "" {
		resp, err := client.Logical().Write("auth/approle/login", map[string]interface{}{
			"role_id":   roleID,
			"secret_id": secretID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to login with AppRole: %w", err)
		}
		if resp.Auth == nil {
			return nil, fmt.Errorf("no auth info returned from AppRole login")
		}
		client.SetToken(resp.Auth.ClientToken)
	}

	return &Service{client: client, mount: mount, key: keyName}, nil
}

// ExportKey exports one key version as "<version>:<base64-key>". "latest" and
// "" resolve to the maximum version the engine holds.
func (s *Service) ExportKey(ctx context.Context, version string) (string, error) {
	keys, err := s.exportedKeys(ctx)
	if err != nil {
		return "", err
	}
	if version == "" || version == "latest" {
		version = maxVersion(keys)
	}
	material, ok := keys[version]
	if !ok {
		return "", fmt.Errorf("%w: version %q of transit key %q", fverr.ErrKeyNotFound, version, s.key)
	}
	return version + ":" + material, nil
}

// ExportAllKeys exports every version of the transit key.
func (s *Service) ExportAllKeys(ctx context.Context) (map[string]string, error) {
	return s.exportedKeys(ctx)
}

func (s *Service) exportedKeys(ctx context.Context) (map[string]string, error) {
	path := fmt.Sprintf("%s/export/encryption-key/%s", s.mount, s.key)
	secret, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to export transit key %q: %w", s.key, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: %q at mount %q", fverr.ErrTransitKeyMissing, s.key, s.mount)
	}
	raw, ok := secret.Data["keys"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %q returned no key material", fverr.ErrTransitKeyMissing, s.key)
	}
	keys := make(map[string]string, len(raw))
	for version, material := range raw {
		text, ok := material.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key material type %T for version %q", material, version)
		}
		keys[version] = text
	}
	return keys, nil
}

func maxVersion(keys map[string]string) string {
	var max string
	for v := range keys {
		if v > max {
			max = v
		}
	}
	return max
}
