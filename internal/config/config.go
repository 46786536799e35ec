package config

import (
	"fmt"
	"sort"

	"github.com/turtacn/cakeys/internal/domain/models"
	"github.com/turtacn/cakeys/pkg/constants"
	"github.com/turtacn/cakeys/pkg/errors"
	"github.com/turtacn/cakeys/pkg/utils"
)

// Config holds the process-wide configuration. It is built once at start-up
// and passed explicitly into every constructor; nothing mutates it afterwards.
type Config struct {
	CA          CAConfig                    `mapstructure:"ca"`
	Storages    map[string]StorageConfig    `mapstructure:"storages" validate:"dive"`
	KeyBackends map[string]KeyBackendConfig `mapstructure:"key_backends" validate:"dive"`
	Log         LogConfig                   `mapstructure:"log"`
	Metrics     MetricsConfig               `mapstructure:"metrics"`
	Tracing     TracingConfig               `mapstructure:"tracing"`
}

// CAConfig is the key policy applied to every certificate authority.
type CAConfig struct {
	MinKeySize                       int               `mapstructure:"min_key_size" validate:"required,power_of_two"`
	DefaultKeySize                   int               `mapstructure:"default_key_size" validate:"required,power_of_two"`
	DefaultEllipticCurve             string            `mapstructure:"default_elliptic_curve" validate:"required,oneof=secp224r1 secp256r1 secp384r1 secp521r1"`
	DefaultSignatureHashAlgorithm    string            `mapstructure:"default_signature_hash_algorithm" validate:"required,oneof=sha256 sha384 sha512"`
	DefaultDSASignatureHashAlgorithm string            `mapstructure:"default_dsa_signature_hash_algorithm" validate:"required,oneof=sha256 sha384 sha512"`
	Passwords                        map[string]string `mapstructure:"passwords"`
}

// Password returns the configured password for a CA serial, if any.
func (c CAConfig) Password(serial string) ([]byte, bool) {
	want := utils.NormalizeSerial(serial)
	for k, v := range c.Passwords {
		if utils.NormalizeSerial(k) == want {
			return []byte(v), true
		}
	}
	return nil, false
}

// KeyPolicy returns the key parameter rules of this configuration.
func (c CAConfig) KeyPolicy() models.KeyPolicy {
	return models.KeyPolicy{
		MinKeySize:           c.MinKeySize,
		DefaultKeySize:       c.DefaultKeySize,
		DefaultEllipticCurve: constants.EllipticCurve(c.DefaultEllipticCurve),
	}
}

// StorageConfig describes one named storage alias.
type StorageConfig struct {
	Type     string      `mapstructure:"type" validate:"required,oneof=filesystem vault redis memory"`
	Location string      `mapstructure:"location" validate:"required_if=Type filesystem"`
	Prefix   string      `mapstructure:"prefix"`
	Vault    VaultConfig `mapstructure:"vault"`
	Redis    RedisConfig `mapstructure:"redis"`
}

type VaultConfig struct {
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	MountPath string `mapstructure:"mount_path"`
}

type RedisConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Password  string   `mapstructure:"password"`
	DB        int      `mapstructure:"db"`
	PoolSize  int      `mapstructure:"pool_size"`
}

// KeyBackendConfig describes one named key backend.
type KeyBackendConfig struct {
	Backend      string       `mapstructure:"backend" validate:"required,oneof=storages pkcs11"`
	StorageAlias string       `mapstructure:"storage_alias" validate:"required_if=Backend storages"`
	PKCS11       PKCS11Config `mapstructure:"pkcs11"`
}

type PKCS11Config struct {
	Module     string `mapstructure:"module"`
	TokenLabel string `mapstructure:"token_label"`
	PIN        string `mapstructure:"pin"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"omitempty,oneof=json console"`
	OutputPath string `mapstructure:"output_path"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	// PushGateway is the Pushgateway URL metrics are pushed to when a command exits.
	PushGateway string `mapstructure:"push_gateway" validate:"omitempty,url"`
	Job         string `mapstructure:"job"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	ServiceName  string  `mapstructure:"service_name"`
	Endpoint     string  `mapstructure:"endpoint"`
	SamplingRate float64 `mapstructure:"sampling_rate" validate:"min=0,max=1"`
}

// DefaultCAConfig returns the built-in key policy.
func DefaultCAConfig() CAConfig {
	return CAConfig{
		MinKeySize:                       constants.DefaultMinKeySize,
		DefaultKeySize:                   constants.DefaultKeySize,
		DefaultEllipticCurve:             string(constants.DefaultEllipticCurve),
		DefaultSignatureHashAlgorithm:    string(constants.DefaultSignatureHashAlgorithm),
		DefaultDSASignatureHashAlgorithm: string(constants.DefaultDSASignatureHashAlgorithm),
		Passwords:                        map[string]string{},
	}
}

// Validate checks struct tags and the rules that span several fields.
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}

	if c.CA.DefaultKeySize < c.CA.MinKeySize {
		return errors.ErrInvalidConfiguration(fmt.Sprintf(
			"ca.default_key_size %d is below ca.min_key_size %d", c.CA.DefaultKeySize, c.CA.MinKeySize))
	}

	for _, name := range sortedKeys(c.KeyBackends) {
		kb := c.KeyBackends[name]
		switch constants.BackendKind(kb.Backend) {
		case constants.BackendKindStorages:
			if _, ok := c.Storages[kb.StorageAlias]; !ok {
				return errors.ErrUnknownStorageAlias(kb.StorageAlias).WithMetadata("key_backend", name)
			}
		case constants.BackendKindPKCS11:
			if kb.PKCS11.Module == "" {
				return errors.ErrInvalidConfiguration(fmt.Sprintf("key_backends.%s.pkcs11.module is required", name))
			}
		}
	}

	for _, name := range sortedKeys(c.Storages) {
		s := c.Storages[name]
		switch constants.StorageType(s.Type) {
		case constants.StorageTypeVault:
			if s.Vault.Address == "" {
				return errors.ErrInvalidConfiguration(fmt.Sprintf("storages.%s.vault.address is required", name))
			}
		case constants.StorageTypeRedis:
			if len(s.Redis.Addresses) == 0 {
				return errors.ErrInvalidConfiguration(fmt.Sprintf("storages.%s.redis.addresses is required", name))
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

//Personal.AI order the ending
