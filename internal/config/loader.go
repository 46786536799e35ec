package config

import (
	"strings"

	"github.com/spf13/viper"
	"github.com/turtacn/cakeys/pkg/constants"
	"github.com/turtacn/cakeys/pkg/errors"
	"github.com/turtacn/cakeys/pkg/utils"
)

// LoadConfig loads the configuration from file and environment variables.
// An empty configFile searches /etc/cakeys/ and the working directory for config.yaml.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("ca.min_key_size", constants.DefaultMinKeySize)
	v.SetDefault("ca.default_key_size", constants.DefaultKeySize)
	v.SetDefault("ca.default_elliptic_curve", string(constants.DefaultEllipticCurve))
	v.SetDefault("ca.default_signature_hash_algorithm", string(constants.DefaultSignatureHashAlgorithm))
	v.SetDefault("ca.default_dsa_signature_hash_algorithm", string(constants.DefaultDSASignatureHashAlgorithm))
	v.SetDefault("storages.default.type", string(constants.StorageTypeFilesystem))
	v.SetDefault("storages.default.location", "files")
	v.SetDefault("key_backends.default.backend", string(constants.BackendKindStorages))
	v.SetDefault("key_backends.default.storage_alias", constants.DefaultStorageAlias)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("metrics.namespace", "cakeys")
	v.SetDefault("metrics.job", "ca-keytool")
	v.SetDefault("tracing.service_name", "cakeys")
	v.SetDefault("tracing.sampling_rate", 1.0)

	// Load from config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/cakeys/")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.ErrInvalidConfiguration("failed to read config").WithCause(err)
		}
	}

	// Load from environment variables
	v.SetEnvPrefix("CAKEYS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.ErrInvalidConfiguration("failed to unmarshal config").WithCause(err)
	}
	cfg.CA.Passwords = normalizePasswords(cfg.CA.Passwords)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// normalizePasswords re-keys the password table by normalised serial, since
// viper lower-cases map keys.
func normalizePasswords(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for serial, password := range in {
		out[utils.NormalizeSerial(serial)] = password
	}
	return out
}

//Personal.AI order the ending
