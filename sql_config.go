package postboard

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
)

type SQLConfig struct {
	Driver   string
	Host     string
	Port     int
	Username string
	Password string
	Database string
	Options  map[string]string
}

func NewSQLConfig() *SQLConfig {
	return &SQLConfig{
		Driver:  "postgres",
		Host:    "localhost",
		Port:    5432,
		Options: map[string]string{"sslmode": "disable"},
	}
}

func (c *SQLConfig) WithDriver(driver string) *SQLConfig {
	c.Driver = driver
	return c
}

func (c *SQLConfig) WithCredentials(username, password string) *SQLConfig {
	c.Username = username
	c.Password = password
	return c
}

func (c *SQLConfig) WithHost(host string, port int) *SQLConfig {
	c.Host = host
	c.Port = port
	return c
}

func (c *SQLConfig) WithDatabase(database string) *SQLConfig {
	c.Database = database
	return c
}

func (c *SQLConfig) WithOption(key, value string) *SQLConfig {
	c.Options[key] = value
	return c
}

// BuildDSN renders a lib/pq keyword/value connection string. Options are appended in key order.
func (c *SQLConfig) BuildDSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database)

	keys := make([]string, 0, len(c.Options))
	for key := range c.Options {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(dsn)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%s", key, c.Options[key])
	}
	return b.String()
}

func (c *SQLConfig) Connect(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(c.Driver, c.BuildDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
