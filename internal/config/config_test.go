package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/cakeys/pkg/constants"
	"github.com/turtacn/cakeys/pkg/errors"
)

const sampleConfig = `
ca:
  min_key_size: 1024
  default_key_size: 2048
  default_elliptic_curve: secp384r1
  passwords:
    "4E:1E:2A:29": "secret"
storages:
  default:
    type: filesystem
    location: /var/lib/cakeys
  secrets:
    type: vault
    prefix: cakeys
    vault:
      address: http://127.0.0.1:8200
      mount_path: secret
key_backends:
  default:
    backend: storages
    storage_alias: default
  vaulted:
    backend: storages
    storage_alias: secrets
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 1024, cfg.CA.MinKeySize)
	assert.Equal(t, 2048, cfg.CA.DefaultKeySize)
	assert.Equal(t, "secp384r1", cfg.CA.DefaultEllipticCurve)
	assert.Equal(t, "sha512", cfg.CA.DefaultSignatureHashAlgorithm)
	assert.Equal(t, "sha256", cfg.CA.DefaultDSASignatureHashAlgorithm)
	assert.Equal(t, "filesystem", cfg.Storages["default"].Type)
	assert.Equal(t, "http://127.0.0.1:8200", cfg.Storages["secrets"].Vault.Address)
	assert.Equal(t, "secrets", cfg.KeyBackends["vaulted"].StorageAlias)
	assert.Equal(t, "info", cfg.Log.Level)

	password, ok := cfg.CA.Password("4e1e2a29")
	require.True(t, ok)
	assert.Equal(t, []byte("secret"), password)

	_, ok = cfg.CA.Password("01")
	assert.False(t, ok)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultMinKeySize, cfg.CA.MinKeySize)
	assert.Equal(t, constants.DefaultKeySize, cfg.CA.DefaultKeySize)
	assert.Equal(t, "secp256r1", cfg.CA.DefaultEllipticCurve)
	assert.Equal(t, "filesystem", cfg.Storages["default"].Type)
	assert.Equal(t, "storages", cfg.KeyBackends["default"].Backend)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("CAKEYS_CA_DEFAULT_KEY_SIZE", "8192")
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, 8192, cfg.CA.DefaultKeySize)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    constants.ErrorCode
	}{
		{
			name:    "key size not a power of two",
			content: "ca:\n  default_key_size: 3000\n",
			code:    constants.ErrCodeInvalidConfiguration,
		},
		{
			name:    "default below minimum",
			content: "ca:\n  min_key_size: 4096\n  default_key_size: 2048\n",
			code:    constants.ErrCodeInvalidConfiguration,
		},
		{
			name:    "unknown curve",
			content: "ca:\n  default_elliptic_curve: curve25519\n",
			code:    constants.ErrCodeInvalidConfiguration,
		},
		{
			name:    "backend references unknown storage",
			content: "key_backends:\n  other:\n    backend: storages\n    storage_alias: missing\n",
			code:    constants.ErrCodeUnknownStorageAlias,
		},
		{
			name:    "unknown storage type",
			content: "storages:\n  s3:\n    type: s3\n",
			code:    constants.ErrCodeInvalidConfiguration,
		},
		{
			name:    "redis without addresses",
			content: "storages:\n  cache:\n    type: redis\n",
			code:    constants.ErrCodeInvalidConfiguration,
		},
		{
			name:    "pkcs11 without module",
			content: "key_backends:\n  hsm:\n    backend: pkcs11\n",
			code:    constants.ErrCodeInvalidConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}
}
