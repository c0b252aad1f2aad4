package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults for the readiness gate. The interval/ceiling pair bounds the
// total wait to interval * max attempts (60s with these values).
const (
	DefaultHost            = "localhost:27017"
	DefaultInterval        = 2 * time.Second
	DefaultMaxAttempts     = 30
	DefaultAttemptTimeout  = 5 * time.Second
	DefaultSmokeCollection = "readygate_smoke"
	DefaultServerPath      = "./server"
)

// Config holds the supervisor configuration. It is read once at process
// start and treated as immutable afterwards; everything downstream
// receives it by value so tests can inject arbitrary targets without
// touching the environment.
type Config struct {
	// Connection target. URI wins over the host/credential tuple.
	URI      string `json:"uri" yaml:"uri"`
	Host     string `json:"host" yaml:"host"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"-" yaml:"-"`
	AuthDB   string `json:"auth_db,omitempty" yaml:"auth_db,omitempty"`

	// Retry policy. MaxAttempts == 0 means retry forever.
	Interval       time.Duration `json:"interval" yaml:"interval"`
	MaxAttempts    int           `json:"max_attempts" yaml:"max_attempts"`
	AttemptTimeout time.Duration `json:"attempt_timeout" yaml:"attempt_timeout"`

	// Functional smoke test (insert+delete against a scratch collection).
	Smoke           bool   `json:"smoke" yaml:"smoke"`
	SmokeCollection string `json:"smoke_collection" yaml:"smoke_collection"`

	// Handoff target and supervisor knobs.
	ServerPath string `json:"server" yaml:"server"`
	StatusAddr string `json:"status_addr,omitempty" yaml:"status_addr,omitempty"`
	LogLevel   string `json:"log_level" yaml:"log_level"`
	LogJSON    bool   `json:"log_json" yaml:"log_json"`
}

// SetDefaults registers the default values on a viper instance
func SetDefaults(v *viper.Viper) {
	v.SetDefault("host", DefaultHost)
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("max_attempts", DefaultMaxAttempts)
	v.SetDefault("attempt_timeout", DefaultAttemptTimeout)
	v.SetDefault("smoke", false)
	v.SetDefault("smoke_collection", DefaultSmokeCollection)
	v.SetDefault("server", DefaultServerPath)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// BindEnv wires the environment variables recognized by the supervisor.
// DATABASE_URL/MONGODB_URL and the MONGO_* tuple are the contract the
// gated server already uses; READYGATE_* covers the supervisor's own
// knobs via the automatic prefix.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("READYGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.BindEnv("uri", "READYGATE_URI", "DATABASE_URL", "MONGODB_URL")
	v.BindEnv("host", "READYGATE_HOST", "MONGO_HOST")
	v.BindEnv("username", "READYGATE_USERNAME", "MONGO_USERNAME")
	v.BindEnv("password", "READYGATE_PASSWORD", "MONGO_PASSWORD")
	v.BindEnv("auth_db", "READYGATE_AUTH_DB", "MONGO_AUTH_DB")
}

// Load builds a Config from a viper instance that has already been
// initialized with defaults, env bindings, flags, and an optional file
func Load(v *viper.Viper) Config {
	return Config{
		URI:             v.GetString("uri"),
		Host:            v.GetString("host"),
		Username:        v.GetString("username"),
		Password:        v.GetString("password"),
		AuthDB:          v.GetString("auth_db"),
		Interval:        v.GetDuration("interval"),
		MaxAttempts:     v.GetInt("max_attempts"),
		AttemptTimeout:  v.GetDuration("attempt_timeout"),
		Smoke:           v.GetBool("smoke"),
		SmokeCollection: v.GetString("smoke_collection"),
		ServerPath:      v.GetString("server"),
		StatusAddr:      v.GetString("status_addr"),
		LogLevel:        v.GetString("log_level"),
		LogJSON:         v.GetBool("log_json"),
	}
}

// Validate checks the configuration for values the gate cannot run with
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("max attempts must be >= 0, got %d", c.MaxAttempts)
	}
	if c.AttemptTimeout <= 0 {
		return fmt.Errorf("attempt timeout must be positive, got %s", c.AttemptTimeout)
	}
	if c.ServerPath == "" {
		return fmt.Errorf("server binary path is required")
	}
	if c.EffectiveURI() == "" {
		return fmt.Errorf("datastore target is required (set DATABASE_URL, MONGODB_URL, or MONGO_HOST)")
	}
	return nil
}

// EffectiveURI returns the connection URI, assembling a mongodb:// URI
// from the host/credential tuple when no full URI was provided
func (c Config) EffectiveURI() string {
	if c.URI != "" {
		return c.URI
	}
	if c.Host == "" {
		return ""
	}

	u := url.URL{
		Scheme: "mongodb",
		Host:   c.Host,
		Path:   "/",
	}
	if c.Username != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	}
	if c.AuthDB != "" {
		q := url.Values{}
		q.Set("authSource", c.AuthDB)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// RedactedURI returns the effective URI with any password replaced, safe
// for log lines and the status endpoint
func (c Config) RedactedURI() string {
	return Redact(c.EffectiveURI())
}

// Redacted returns a copy of the configuration safe to print: the URI
// loses its password and the password field is cleared
func (c Config) Redacted() Config {
	out := c
	out.URI = Redact(c.URI)
	out.Password = ""
	return out
}

// Redact strips the password from a connection URI. Unparseable strings
// are returned as-is only when they carry no userinfo.
func Redact(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		if strings.Contains(uri, "@") {
			return "(redacted)"
		}
		return uri
	}
	if u.User != nil {
		if _, has := u.User.Password(); has {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
	}
	return u.String()
}
