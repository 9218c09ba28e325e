package helper

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

const defaultMaxOpenConns = 20

// Database is the shared connection pool handle passed to every DB handler.
type Database struct {
	Name     string
	Logger   *slog.Logger
	Instance *sql.DB
}

// DatabaseConfiguration holds the connection parameters of the relational store.
type DatabaseConfiguration struct {
	Host         string
	Port         string
	Database     string
	Username     string
	Password     string
	Schema       string
	SSLMode      string
	MaxOpenConns int
}

// NewDatabaseConfiguration reads the database configuration from the environment.
// DATABASE_URL takes precedence over the individual POSTGRES_* variables.
func NewDatabaseConfiguration() (*DatabaseConfiguration, error) {
	config := &DatabaseConfiguration{
		Host:         os.Getenv("POSTGRES_HOST"),
		Port:         getEnv("POSTGRES_PORT", "5432"),
		Database:     os.Getenv("POSTGRES_DB"),
		Username:     os.Getenv("POSTGRES_USER"),
		Password:     os.Getenv("POSTGRES_PASSWORD"),
		Schema:       getEnv("POSTGRES_SCHEMA", "public"),
		SSLMode:      getEnv("POSTGRES_SSLMODE", "disable"),
		MaxOpenConns: getEnvInt("POSTGRES_MAX_OPEN_CONNS", defaultMaxOpenConns),
	}

	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		err := config.applyURL(databaseURL)
		if err != nil {
			return nil, NewError("parse DATABASE_URL", err)
		}
	}

	if len(strings.TrimSpace(config.Host)) == 0 || len(strings.TrimSpace(config.Database)) == 0 || len(strings.TrimSpace(config.Username)) == 0 {
		return nil, NewError("database configuration", fmt.Errorf("POSTGRES_HOST, POSTGRES_DB and POSTGRES_USER (or DATABASE_URL) must be set"))
	}

	return config, nil
}

func (c *DatabaseConfiguration) applyURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	c.Host = u.Hostname()
	if port := u.Port(); port != "" {
		c.Port = port
	}
	c.Database = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		c.Username = u.User.Username()
		if password, ok := u.User.Password(); ok {
			c.Password = password
		}
	}
	if sslMode := u.Query().Get("sslmode"); sslMode != "" {
		c.SSLMode = sslMode
	}
	return nil
}

// DatabaseConnectionString returns the lib/pq connection string.
func (c *DatabaseConfiguration) DatabaseConnectionString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   fmt.Sprintf("%s:%s", c.Host, c.Port),
		Path:   c.Database,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	if c.Schema != "" {
		q.Set("search_path", c.Schema)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NewDatabase opens the pool described by config.
// It returns a Database without instance if config is nil.
func NewDatabase(name string, config *DatabaseConfiguration, logger *slog.Logger) (*Database, error) {
	db := &Database{
		Name:   name,
		Logger: logger,
	}
	if config == nil {
		return db, nil
	}

	err := db.ConnectToDatabase(config)
	if err != nil {
		return nil, NewError("connect to database", err)
	}

	return db, nil
}

// ConnectToDatabase opens and pings the connection pool.
// Acquisition beyond MaxOpenConns blocks until a connection is released.
func (d *Database) ConnectToDatabase(config *DatabaseConfiguration) error {
	instance, err := sql.Open("postgres", config.DatabaseConnectionString())
	if err != nil {
		return NewError("open", err)
	}

	maxOpen := config.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	instance.SetMaxOpenConns(maxOpen)
	instance.SetMaxIdleConns(maxOpen)
	instance.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = instance.PingContext(ctx)
	if err != nil {
		instance.Close()
		return NewError("ping", err)
	}

	d.Instance = instance
	d.Logger.Info("Connected to database", slog.String("name", d.Name), slog.String("host", config.Host), slog.Int("max_open_conns", maxOpen))

	return nil
}

// Health performs a trivial round-trip to the store.
func (d *Database) Health(ctx context.Context) error {
	if d == nil || d.Instance == nil {
		return NewError("health", fmt.Errorf("database connection is nil"))
	}

	var one int
	err := d.Instance.QueryRowContext(ctx, `SELECT 1`).Scan(&one)
	if err != nil {
		return NewError("health", err)
	}
	return nil
}

// Close closes the connection pool.
func (d *Database) Close() error {
	if d == nil || d.Instance == nil {
		return nil
	}
	return d.Instance.Close()
}

func getEnv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
