package core

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Assignment visibility scopes.
const (
	ScopeAll      = "all"      // every student sees every assignment
	ScopeEnrolled = "enrolled" // only assignments of subjects the student is enrolled in
)

type (
	Config struct {
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		AppName      string
		RollbarToken string

		Server   ServerConfig
		Database DatabaseConfig
		Session  SessionConfig
		Storage  StorageConfig
		Portal   PortalConfig
	}

	ServerConfig struct {
		Address         string
		DebugAddress    string
		Host            string
		ShutdownTimeout time.Duration
		BodyLimit       string
		LoginRateLimit  float64 // requests per second per IP, 0 disables
		DisableReqLogs  bool
	}

	DatabaseConfig struct {
		Engine     string // sqlite | postgres
		Path       string // sqlite only
		Host       string
		Port       string
		Name       string
		User       string
		Password   string
		DisableTLS bool
	}

	SessionConfig struct {
		TTL time.Duration
	}

	StorageConfig struct {
		Root          string
		MaxFileSize   int64
		MaxNameLength int
	}

	PortalConfig struct {
		AssignmentScope   string
		StrictGradeLabels bool
	}
)

func (dbc DatabaseConfig) Address() string {
	return dbc.Host + ":" + dbc.Port
}

func (dbc DatabaseConfig) IsSQLite() bool {
	return dbc.Engine == "sqlite"
}

// NewConfig loads the application configuration.
// Precedence: environment (PORTAL_*) > config/.env.<env> > defaults.
func NewConfig() (*Config, error) {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "Kabinet")
	conf.SetDefault("build", "dev")
	conf.SetDefault("rollbarToken", "")

	conf.SetDefault("server.address", ":8000")
	conf.SetDefault("server.debugAddress", ":4000")
	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.bodyLimit", "64M")
	conf.SetDefault("server.loginRateLimit", 1.0)
	conf.SetDefault("server.disableReqLogs", false)

	conf.SetDefault("database.engine", "sqlite")
	conf.SetDefault("database.path", filepath.Join("instance", "app.db"))
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.name", "kabinet")
	conf.SetDefault("database.user", "")
	conf.SetDefault("database.password", "")
	conf.SetDefault("database.disableTLS", true)

	conf.SetDefault("session.ttl", 24*time.Hour)

	conf.SetDefault("storage.root", filepath.Join("storage", "submissions"))
	conf.SetDefault("storage.maxFileSize", int64(10<<20))
	conf.SetDefault("storage.maxNameLength", 100)

	conf.SetDefault("portal.assignmentScope", ScopeAll)
	conf.SetDefault("portal.strictGradeLabels", false)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		conf.SetDefault("testMode", true)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", dotEnvPath)
	}

	conf.SetEnvPrefix("portal")
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	conf.AutomaticEnv()

	c := &Config{
		Env:          env,
		Build:        conf.GetString("build"),
		Debug:        conf.GetBool("debug"),
		TestMode:     conf.GetBool("testMode"),
		AppName:      conf.GetString("appName"),
		RollbarToken: conf.GetString("rollbarToken"),
		Server: ServerConfig{
			Address:         conf.GetString("server.address"),
			DebugAddress:    conf.GetString("server.debugAddress"),
			Host:            conf.GetString("server.host"),
			ShutdownTimeout: conf.GetDuration("server.shutdownTimeout"),
			BodyLimit:       conf.GetString("server.bodyLimit"),
			LoginRateLimit:  conf.GetFloat64("server.loginRateLimit"),
			DisableReqLogs:  conf.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:     strings.ToLower(conf.GetString("database.engine")),
			Path:       conf.GetString("database.path"),
			Host:       conf.GetString("database.host"),
			Port:       conf.GetString("database.port"),
			Name:       conf.GetString("database.name"),
			User:       conf.GetString("database.user"),
			Password:   conf.GetString("database.password"),
			DisableTLS: conf.GetBool("database.disableTLS"),
		},
		Session: SessionConfig{
			TTL: conf.GetDuration("session.ttl"),
		},
		Storage: StorageConfig{
			Root:          conf.GetString("storage.root"),
			MaxFileSize:   conf.GetInt64("storage.maxFileSize"),
			MaxNameLength: conf.GetInt("storage.maxNameLength"),
		},
		Portal: PortalConfig{
			AssignmentScope:   strings.ToLower(conf.GetString("portal.assignmentScope")),
			StrictGradeLabels: conf.GetBool("portal.strictGradeLabels"),
		},
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.Database.Engine {
	case "sqlite", "postgres":
	default:
		return errors.Errorf("config: unsupported database engine %q", c.Database.Engine)
	}
	switch c.Portal.AssignmentScope {
	case ScopeAll, ScopeEnrolled:
	default:
		return errors.Errorf("config: unsupported assignment scope %q", c.Portal.AssignmentScope)
	}
	if c.Session.TTL <= 0 {
		return errors.New("config: session ttl must be positive")
	}
	if c.Storage.MaxFileSize <= 0 {
		return errors.New("config: storage max file size must be positive")
	}
	return nil
}

// NewTestConfig returns a Config suitable for tests: sqlite in dir, uploads in dir/storage.
func NewTestConfig(dir string) *Config {
	return &Config{
		Env:      "TEST",
		Build:    "test",
		Debug:    false,
		TestMode: true,
		AppName:  "Kabinet",
		Server: ServerConfig{
			ShutdownTimeout: time.Second,
			BodyLimit:       "64M",
			DisableReqLogs:  true,
		},
		Database: DatabaseConfig{
			Engine: "sqlite",
			Path:   filepath.Join(dir, "test.db"),
		},
		Session: SessionConfig{TTL: 24 * time.Hour},
		Storage: StorageConfig{
			Root:          filepath.Join(dir, "storage"),
			MaxFileSize:   10 << 20,
			MaxNameLength: 100,
		},
		Portal: PortalConfig{AssignmentScope: ScopeAll},
	}
}
