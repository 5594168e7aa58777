package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const (
	defaultMongoURI   = "mongodb://localhost:27017"
	defaultDBName     = "plp_bookstore"
	defaultCollection = "books"
	defaultExchange   = "catalog.events"

	defaultConnectTimeout = 10 * time.Second
)

type Config struct {
	MongoURI       string
	DBName         string
	Collection     string
	ConnectTimeout time.Duration
	// 0 = no per-step deadline, the driver defaults apply
	OpTimeout time.Duration

	Output   string // text | json
	LogLevel string

	RabbitURL      string // empty disables events
	RabbitExchange string
	JournalPath    string // empty disables the run journal
	SeedOnStart    bool
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// envConfig layers defaults, .env and the environment. A missing .env is
// not an error.
func envConfig() Config {
	_ = godotenv.Load()

	return Config{
		MongoURI:       getenv("MONGO_URI", defaultMongoURI),
		DBName:         getenv("DB_NAME", defaultDBName),
		Collection:     getenv("COLLECTION_NAME", defaultCollection),
		ConnectTimeout: getenvDuration("CATALOG_CONNECT_TIMEOUT", defaultConnectTimeout),
		OpTimeout:      getenvDuration("CATALOG_OP_TIMEOUT", 0),
		Output:         getenv("CATALOG_OUTPUT", "text"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		RabbitURL:      getenv("RABBITMQ_URL", ""),
		RabbitExchange: getenv("RABBITMQ_EXCHANGE", defaultExchange),
		JournalPath:    getenv("CATALOG_JOURNAL_PATH", ""),
		SeedOnStart:    getenvBool("CATALOG_SEED", false),
	}
}

// bindFlags registers the command-line flags over cfg. The current values of
// cfg become the flag defaults, so flags win over the environment.
func bindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.MongoURI, "uri", cfg.MongoURI, "MongoDB connection string")
	fs.StringVar(&cfg.DBName, "db", cfg.DBName, "database name")
	fs.StringVar(&cfg.Collection, "collection", cfg.Collection, "collection name")
	fs.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "timeout for connect + ping")
	fs.DurationVar(&cfg.OpTimeout, "op-timeout", cfg.OpTimeout, "per-step timeout (0 = none)")
	fs.StringVar(&cfg.Output, "output", cfg.Output, "output format: text or json")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.RabbitURL, "rabbit", cfg.RabbitURL, "RabbitMQ URL for domain events (empty = off)")
	fs.StringVar(&cfg.RabbitExchange, "exchange", cfg.RabbitExchange, "RabbitMQ topic exchange")
	fs.StringVar(&cfg.JournalPath, "journal", cfg.JournalPath, "SQLite run journal path (empty = off)")
	fs.BoolVar(&cfg.SeedOnStart, "seed", cfg.SeedOnStart, "upsert the fixture books before running")
}

func (c Config) validate() error {
	if c.MongoURI == "" {
		return fmt.Errorf("mongo uri is empty")
	}
	if c.DBName == "" || c.Collection == "" {
		return fmt.Errorf("database and collection names are required")
	}
	if c.Output != "text" && c.Output != "json" {
		return fmt.Errorf("unknown output %q (want text or json)", c.Output)
	}
	if c.ConnectTimeout < 0 || c.OpTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

// redactURI drops the password from a connection string before it is logged.
func redactURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
