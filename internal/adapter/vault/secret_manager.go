// Package vault reads application secrets from HashiCorp Vault.
package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

var ErrSecretNotFound = errors.New("vault: secret not found")

type SecretManager struct {
	client *api.Client
	log    *zap.Logger
}

func NewSecretManager(address, token string, log *zap.Logger) (*SecretManager, error) {
	config := api.DefaultConfig()
	config.Address = address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("vault: new client: %w", err)
	}

	client.SetToken(token)

	return &SecretManager{client: client, log: log}, nil
}

// Secret reads field from the secret at path. KV v2 payloads, which nest the
// values under "data", are unwrapped.
func (sm *SecretManager) Secret(ctx context.Context, path, field string) (string, error) {
	secret, err := sm.client.Logical().ReadWithContext(ctx, strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", fmt.Errorf("vault: read %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, path)
	}
	return lookupField(secret.Data, path, field)
}

func lookupField(data map[string]interface{}, path, field string) (string, error) {
	if nested, ok := data["data"].(map[string]interface{}); ok {
		data = nested
	}
	raw, ok := data[field]
	if !ok {
		return "", fmt.Errorf("%w: %s#%s", ErrSecretNotFound, path, field)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("vault: %s#%s is %T, not a string", path, field, raw)
	}
	return value, nil
}
