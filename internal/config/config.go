package config // package config loads application configuration from environment variables

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Database settings cover both supported drivers:
// the MySQL fields are used when DBDriver is "mysql" and SQLitePath when it
// is "sqlite".
type Config struct {
	Env      string `env:"APP_ENV" envDefault:"dev"`    // application environment (dev/test/prod)
	Port     string `env:"APP_PORT" envDefault:"8080"`  // HTTP port to listen on
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"` // debug, info, warn or error

	DBDriver       string        `env:"DB_DRIVER" envDefault:"mysql"` // mysql or sqlite
	DBUser         string        `env:"DB_USER"`
	DBPass         string        `env:"DB_PASS"` // empty allowed
	DBHost         string        `env:"DB_HOST" envDefault:"localhost"`
	DBPort         string        `env:"DB_PORT" envDefault:"3306"`
	DBName         string        `env:"DB_NAME" envDefault:"festival_program"`
	DBMaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBConnMaxLife  time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	SQLitePath     string        `env:"SQLITE_PATH" envDefault:"data/program.db"`

	JWTSecret string `env:"JWT_SECRET,required,notEmpty"` // secret used to verify admin JWTs

	// ProgramTimezone is the reference timezone for calendar-day lineup filters.
	ProgramTimezone    string `env:"PROGRAM_TIMEZONE" envDefault:"UTC"`
	LineupDefaultLimit int    `env:"LINEUP_DEFAULT_LIMIT" envDefault:"50"`
	LineupMaxLimit     int    `env:"LINEUP_MAX_LIMIT" envDefault:"200"`
}

// Load reads configuration values from environment variables and returns a
// Config.  Missing required variables and malformed values are reported as
// an error instead of terminating the process so callers decide how to exit.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DBDriver {
	case "mysql":
		if c.DBUser == "" {
			return fmt.Errorf("config: DB_USER is required for the mysql driver")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("config: SQLITE_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DBDriver)
	}
	if _, err := time.LoadLocation(c.ProgramTimezone); err != nil {
		return fmt.Errorf("config: invalid PROGRAM_TIMEZONE %q: %w", c.ProgramTimezone, err)
	}
	if c.LineupDefaultLimit < 1 || c.LineupMaxLimit < c.LineupDefaultLimit {
		return fmt.Errorf("config: lineup limits must satisfy 1 <= default (%d) <= max (%d)", c.LineupDefaultLimit, c.LineupMaxLimit)
	}
	return nil
}

// Location returns the program reference timezone.  Load has already
// validated the name, so the UTC fallback is only reached for hand-built
// configs.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ProgramTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsProd reports whether the service runs in production mode.
func (c Config) IsProd() bool { return c.Env == "prod" }
