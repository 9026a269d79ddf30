package helper

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Database holds the connection pool shared by all database handlers.
type Database struct {
	Name     string
	Logger   *slog.Logger
	Instance *sql.DB
}

// DatabaseConfiguration describes how to connect to the Postgres instance
// that stores components and references.
type DatabaseConfiguration struct {
	Host          string
	Port          string
	Database      string
	Username      string
	Password      string
	Schema        string
	SSLMode       string
	WithTableDrop bool
}

// NewDatabaseConfiguration reads the database configuration from the environment.
// A .env file in the working directory is loaded first if present.
func NewDatabaseConfiguration() (*DatabaseConfiguration, error) {
	_ = godotenv.Load()

	config := &DatabaseConfiguration{
		Host:     os.Getenv("ARCHIVIST_DB_HOST"),
		Port:     os.Getenv("ARCHIVIST_DB_PORT"),
		Database: os.Getenv("ARCHIVIST_DB_DATABASE"),
		Username: os.Getenv("ARCHIVIST_DB_USERNAME"),
		Password: os.Getenv("ARCHIVIST_DB_PASSWORD"),
		Schema:   os.Getenv("ARCHIVIST_DB_SCHEMA"),
		SSLMode:  os.Getenv("ARCHIVIST_DB_SSLMODE"),
	}

	if len(config.Host) == 0 || len(config.Port) == 0 || len(config.Database) == 0 || len(config.Username) == 0 {
		return nil, NewError("database configuration", fmt.Errorf("ARCHIVIST_DB_HOST, ARCHIVIST_DB_PORT, ARCHIVIST_DB_DATABASE and ARCHIVIST_DB_USERNAME must be set"))
	}
	if len(config.Schema) == 0 {
		config.Schema = "public"
	}
	if len(config.SSLMode) == 0 {
		config.SSLMode = "require"
	}

	if drop := os.Getenv("ARCHIVIST_DB_WITH_TABLE_DROP"); len(drop) > 0 {
		withTableDrop, err := strconv.ParseBool(drop)
		if err != nil {
			return nil, NewError("parse ARCHIVIST_DB_WITH_TABLE_DROP", err)
		}
		config.WithTableDrop = withTableDrop
	}

	return config, nil
}

// DatabaseConnectionString returns the lib/pq connection string for the configuration.
func (c *DatabaseConfiguration) DatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&search_path=%s",
		c.Username,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
		c.Schema,
	)
}

// NewDatabase opens the connection pool and verifies it with a ping.
// It panics if the database is unreachable, since nothing can be served without it.
func NewDatabase(name string, config *DatabaseConfiguration, logger *slog.Logger) *Database {
	if logger == nil {
		logger = slog.Default()
	}

	db := &Database{
		Name:   name,
		Logger: logger,
	}

	instance, err := db.ConnectToDatabase(config)
	if err != nil {
		log.Panicf("error connecting to database: %v", err)
	}
	db.Instance = instance

	if config.WithTableDrop {
		if err := db.DropTables(); err != nil {
			log.Panicf("error dropping tables: %v", err)
		}
	}

	logger.Info("Connected to database", slog.String("name", name), slog.String("host", config.Host))

	return db
}

// NewTestDatabase opens a connection for tests, logging to stdout at debug level.
func NewTestDatabase(config *DatabaseConfiguration) *Database {
	logger := slog.New(NewPrettyHandler(os.Stdout, PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{Level: slog.LevelDebug},
	}))
	return NewDatabase("test_db", config, logger)
}

// ConnectToDatabase opens a pooled connection and pings it with retries.
func (d *Database) ConnectToDatabase(config *DatabaseConfiguration) (*sql.DB, error) {
	instance, err := sql.Open("postgres", config.DatabaseConnectionString())
	if err != nil {
		return nil, NewError("sql open", err)
	}

	instance.SetMaxOpenConns(25)
	instance.SetMaxIdleConns(25)
	instance.SetConnMaxLifetime(5 * time.Minute)

	var pingErr error
	for attempt := 0; attempt < 5; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		pingErr = instance.PingContext(ctx)
		cancel()
		if pingErr == nil {
			return instance, nil
		}
		time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
	}

	instance.Close()
	return nil, NewError("ping", pingErr)
}

// DropTables removes all archivist tables. Only used when WithTableDrop is set.
func (d *Database) DropTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := d.Instance.ExecContext(ctx, `DROP TABLE IF EXISTS component_references, components CASCADE;`)
	if err != nil {
		return NewError("drop tables", err)
	}

	d.Logger.Warn("Dropped archivist tables")
	return nil
}

// Close closes the connection pool.
func (d *Database) Close() error {
	if d == nil || d.Instance == nil {
		return nil
	}
	return d.Instance.Close()
}
