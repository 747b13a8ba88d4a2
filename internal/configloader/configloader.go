// Package configloader reads the tokenguard service configuration from an
// optional YAML file and TOKENGUARD_* environment variables.
package configloader

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/tokenguard"
	"github.com/MrEthical07/tokenguard/internal/logger"
	"github.com/MrEthical07/tokenguard/jwt"
	"github.com/MrEthical07/tokenguard/userstore"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override; "server.addr" is read
// from TOKENGUARD_SERVER_ADDR.
const EnvPrefix = "TOKENGUARD"

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	TrustProxy      bool          `mapstructure:"trust_proxy"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RedisConfig points at the shared revocation store. Embedded starts an
// in-process miniredis instead of dialing Addr.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Embedded bool   `mapstructure:"embedded"`
}

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig             `mapstructure:"server"`
	Log      logger.Config            `mapstructure:"log"`
	Redis    RedisConfig              `mapstructure:"redis"`
	Postgres userstore.PostgresConfig `mapstructure:"postgres"`
	Users    []userstore.SeedUser     `mapstructure:"users"`
	Auth     tokenguard.Config        `mapstructure:"auth"`
	Keys     KeyConfig                `mapstructure:"keys"`
}

// KeyConfig locates signing material. Secret is used for hs256; the files
// hold PEM or raw ed25519 keys.
type KeyConfig struct {
	Secret         string `mapstructure:"secret"`
	PrivateKeyFile string `mapstructure:"private_key_file"`
	PublicKeyFile  string `mapstructure:"public_key_file"`
}

// Validate checks the service sections, then the engine config.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr must not be empty")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("server.shutdown_timeout must be > 0")
	}
	if !c.Redis.Embedded && c.Auth.Store.Backend == tokenguard.StoreRedis && c.Redis.Addr == "" {
		return errors.New("redis.addr is required for the redis store backend")
	}
	if c.Postgres.DSN == "" && len(c.Users) == 0 {
		return errors.New("either postgres.dsn or users must be configured")
	}
	return c.Auth.Validate()
}

// Load reads path (optional), applies environment overrides, decodes into
// Config, resolves key material and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults() {
		v.SetDefault(key, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("configloader: read config %q: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := decode(v.AllSettings(), cfg); err != nil {
		return nil, fmt.Errorf("configloader: decode: %w", err)
	}
	cfg.Auth.JWT.SigningMethod = strings.ToLower(cfg.Auth.JWT.SigningMethod)
	if err := loadKeys(cfg); err != nil {
		return nil, fmt.Errorf("configloader: keys: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configloader: validation failed: %w", err)
	}
	return cfg, nil
}

func loadKeys(cfg *Config) error {
	switch jwt.SigningMethod(cfg.Auth.JWT.SigningMethod) {
	case jwt.MethodHS256:
		if cfg.Keys.Secret == "" {
			return errors.New("keys.secret is required for hs256")
		}
		cfg.Auth.JWT.PrivateKey = []byte(cfg.Keys.Secret)
	case jwt.MethodEd25519:
		if cfg.Keys.PublicKeyFile == "" {
			return errors.New("keys.public_key_file is required for ed25519")
		}
		pub, err := os.ReadFile(cfg.Keys.PublicKeyFile)
		if err != nil {
			return err
		}
		cfg.Auth.JWT.PublicKey = pub
		if cfg.Keys.PrivateKeyFile != "" {
			priv, err := os.ReadFile(cfg.Keys.PrivateKeyFile)
			if err != nil {
				return err
			}
			cfg.Auth.JWT.PrivateKey = priv
		}
	}
	// Unknown methods are reported by Validate.
	return nil
}

func decode(input map[string]interface{}, target interface{}) error {
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		stringToBoolHook,
	)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           target,
		DecodeHook:       hook,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func stringToBoolHook(f, t reflect.Kind, data interface{}) (interface{}, error) {
	if f == reflect.String && t == reflect.Bool {
		return strconv.ParseBool(data.(string))
	}
	return data, nil
}
