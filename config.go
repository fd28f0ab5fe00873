package auth

import (
	"fmt"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPersistentLoginTTL is roughly three months
	DefaultPersistentLoginTTL = 7889238 * time.Second
	// DefaultOperationTimeout bounds every public Auther call
	DefaultOperationTimeout = 10 * time.Second
	// DefaultSessionNamespace is the session key holding the user id
	DefaultSessionNamespace = "__auth"
	// DefaultPersistentCookieName is the remember-me cookie name
	DefaultPersistentCookieName = "auth_p"
	// EnvPrefix prefixes every environment override
	EnvPrefix = "AUTH_"
)

// DatabaseOptions selects the backing store
type DatabaseOptions struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

// SessionOptions configures the session provider
type SessionOptions struct {
	CookieName string `yaml:"cookie_name" json:"cookie_name"`
	TTLSeconds int    `yaml:"ttl_seconds" json:"ttl_seconds"`
	Secure     bool   `yaml:"secure" json:"secure"`
	RedisURL   string `yaml:"redis_url" json:"redis_url"`
}

// Options is the concrete Config. Zero values fall back to defaults.
type Options struct {
	HashCost                 int             `yaml:"hash_cost" json:"hash_cost"`
	SessionNamespace         string          `yaml:"session_namespace" json:"session_namespace"`
	PersistentCookieName     string          `yaml:"persistent_cookie_name" json:"persistent_cookie_name"`
	PersistentCookieSecure   bool            `yaml:"persistent_cookie_secure" json:"persistent_cookie_secure"`
	PersistentCookieDomain   string          `yaml:"persistent_cookie_domain" json:"persistent_cookie_domain"`
	PersistentLoginTTLSecond int             `yaml:"persistent_login_ttl_seconds" json:"persistent_login_ttl_seconds"`
	PersistentTokenSalt      string          `yaml:"persistent_token_salt" json:"-"`
	OperationTimeout         time.Duration   `yaml:"operation_timeout" json:"operation_timeout"`
	Database                 DatabaseOptions `yaml:"database" json:"database"`
	Session                  SessionOptions  `yaml:"session" json:"session"`
}

var _ Config = Options{}

// DefaultOptions returns options with every default applied. The salt is
// left empty on purpose; Validate rejects it.
func DefaultOptions() Options {
	return Options{
		HashCost:                 DefaultHashCost,
		SessionNamespace:         DefaultSessionNamespace,
		PersistentCookieName:     DefaultPersistentCookieName,
		PersistentLoginTTLSecond: int(DefaultPersistentLoginTTL / time.Second),
		OperationTimeout:         DefaultOperationTimeout,
		Database: DatabaseOptions{
			Driver: DriverSQLite,
			DSN:    "file:auth.db?cache=shared",
		},
		Session: SessionOptions{
			CookieName: "auth_sid",
			TTLSeconds: int((2 * time.Hour) / time.Second),
		},
	}
}

func (o Options) GetHashCost() int {
	if o.HashCost == 0 {
		return DefaultHashCost
	}
	return o.HashCost
}

func (o Options) GetSessionNamespace() string {
	if o.SessionNamespace == "" {
		return DefaultSessionNamespace
	}
	return o.SessionNamespace
}

func (o Options) GetPersistentCookieName() string {
	if o.PersistentCookieName == "" {
		return DefaultPersistentCookieName
	}
	return o.PersistentCookieName
}

func (o Options) GetPersistentCookieSecure() bool {
	return o.PersistentCookieSecure
}

func (o Options) GetPersistentCookieDomain() string {
	return o.PersistentCookieDomain
}

func (o Options) GetPersistentLoginTTL() time.Duration {
	if o.PersistentLoginTTLSecond <= 0 {
		return DefaultPersistentLoginTTL
	}
	return time.Duration(o.PersistentLoginTTLSecond) * time.Second
}

func (o Options) GetPersistentTokenSalt() string {
	return o.PersistentTokenSalt
}

func (o Options) GetOperationTimeout() time.Duration {
	if o.OperationTimeout <= 0 {
		return DefaultOperationTimeout
	}
	return o.OperationTimeout
}

// Validate will run validation rules
func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.HashCost, validation.Min(bcrypt.MinCost), validation.Max(bcrypt.MaxCost)),
		validation.Field(&o.PersistentTokenSalt, validation.Required, validation.Length(8, 0)),
		validation.Field(&o.PersistentLoginTTLSecond, validation.Min(0)),
		validation.Field(&o.Database, validation.By(func(value any) error {
			db, _ := value.(DatabaseOptions)
			if db.Driver == "" {
				return nil
			}
			return validation.Validate(db.Driver, validation.In(DriverSQLite, DriverPostgres))
		})),
	)
}

// LoadOptions builds Options from defaults, an optional YAML file, an
// optional .env file and AUTH_* environment variables, in that order.
func LoadOptions(path string, envFiles ...string) (Options, error) {
	opts := DefaultOptions()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return opts, fmt.Errorf("read auth config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &opts); err != nil {
			return opts, fmt.Errorf("parse auth config %s: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv.Load does not override variables already set in the shell
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return opts, fmt.Errorf("load env file %s: %w", f, err)
			}
		}
	}

	if err := applyEnv(&opts); err != nil {
		return opts, err
	}

	return opts, opts.Validate()
}

func applyEnv(o *Options) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}
	boolean := func(key string, dst *bool) error {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = b
		return nil
	}

	str("SESSION_NAMESPACE", &o.SessionNamespace)
	str("PERSISTENT_COOKIE_NAME", &o.PersistentCookieName)
	str("PERSISTENT_COOKIE_DOMAIN", &o.PersistentCookieDomain)
	str("PERSISTENT_TOKEN_SALT", &o.PersistentTokenSalt)
	str("DATABASE_DRIVER", &o.Database.Driver)
	str("DATABASE_DSN", &o.Database.DSN)
	str("SESSION_COOKIE_NAME", &o.Session.CookieName)
	str("SESSION_REDIS_URL", &o.Session.RedisURL)

	if v, ok := os.LookupEnv(EnvPrefix + "OPERATION_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sOPERATION_TIMEOUT: %w", EnvPrefix, err)
		}
		o.OperationTimeout = d
	}

	for key, dst := range map[string]*int{
		"HASH_COST":                    &o.HashCost,
		"PERSISTENT_LOGIN_TTL_SECONDS": &o.PersistentLoginTTLSecond,
		"SESSION_TTL_SECONDS":          &o.Session.TTLSeconds,
	} {
		if err := integer(key, dst); err != nil {
			return err
		}
	}

	for key, dst := range map[string]*bool{
		"PERSISTENT_COOKIE_SECURE": &o.PersistentCookieSecure,
		"SESSION_SECURE":           &o.Session.Secure,
	} {
		if err := boolean(key, dst); err != nil {
			return err
		}
	}

	return nil
}
