package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings"

	"github.com/joho/godotenv" // optional .env file support for local runs
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations and costs.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBDriver       string // "mysql" or "sqlite"
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	SQLitePath     string // database file when DBDriver is sqlite
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time‑to‑live in minutes
	RefreshTTLDays int    // refresh token time‑to‑live in days
	BcryptCost     int    // bcrypt cost for password hashing
	RabbitURL      string // AMQP broker URL; empty disables loan events
	LogFormat      string // "text" or "json"
	LogDir         string // directory of the loan event log
}

// Load reads an optional .env file, then configuration values from
// environment variables.  Required variables are enforced by must() and
// missing values cause the program to exit with a fatal log message.
// MySQL connection settings are only required when DB_DRIVER is mysql.
func Load() Config {
	_ = godotenv.Load() // a missing .env is fine; real env vars win

	cfg := Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBDriver:       strings.ToLower(envStr("DB_DRIVER", "mysql")),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		RabbitURL:      rabbitURL(),
		LogFormat:      strings.ToLower(envStr("LOG_FORMAT", "text")),
		LogDir:         envStr("LOG_DIR", "logs"),
	}
	switch cfg.DBDriver {
	case "mysql":
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	case "sqlite":
		cfg.SQLitePath = envStr("SQLITE_PATH", "library.db")
	default:
		log.Fatalf("invalid DB_DRIVER: %q (want mysql or sqlite)", cfg.DBDriver)
	}
	return cfg
}

// LoadStore reads only the settings needed to reach the database.  The
// admin CLI uses it so that it does not require HTTP or JWT settings.
func LoadStore() Config {
	_ = godotenv.Load()

	cfg := Config{
		DBDriver:   strings.ToLower(envStr("DB_DRIVER", "mysql")),
		DBUser:     os.Getenv("DB_USER"),
		DBPass:     os.Getenv("DB_PASS"),
		DBHost:     envStr("DB_HOST", "127.0.0.1"),
		DBPort:     envStr("DB_PORT", "3306"),
		DBName:     os.Getenv("DB_NAME"),
		SQLitePath: envStr("SQLITE_PATH", "library.db"),
		BcryptCost: envInt("BCRYPT_COST", 12),
	}
	return cfg
}

// rabbitURL honours both RABBITMQ_URL and the older AMQP_URL name.
func rabbitURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
