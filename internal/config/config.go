package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/klass-lk/postboard"
)

type StoreDriver string

const (
	StorePostgres StoreDriver = "postgres"
	StoreMongo    StoreDriver = "mongo"
	StoreDynamoDB StoreDriver = "dynamodb"
	StoreMemory   StoreDriver = "memory"
)

type Config struct {
	Port     int
	BasePath string
	Store    StoreDriver

	DBDriver   string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	MongoHost     string
	MongoPort     int
	MongoUser     string
	MongoPassword string
	MongoDatabase string

	DynamoDBTable      string
	DynamoDBRegion     string
	DynamoDBEndpoint   string
	DynamoDBSkipCreate bool

	JWTSecret      string
	RequiredScopes []string
	LegacyEnvelope bool
	AllowOrigins   []string
}

// Load reads files (".env" when none are given) into the environment without
// overriding variables that are already set, then builds a Config from it.
// Missing env files are ignored.
func Load(files ...string) (*Config, error) {
	_ = godotenv.Load(files...)

	cfg := &Config{
		BasePath: getenv("BASE_PATH", "/api"),
		Store:    StoreDriver(strings.ToLower(getenv("STORE_DRIVER", string(StorePostgres)))),

		DBDriver:   getenv("DB_DRIVER", "postgres"),
		DBHost:     getenv("DB_HOST", "localhost"),
		DBUser:     getenv("DB_USER", "postgres"),
		DBPassword: getenv("DB_PASSWORD", "postgres"),
		DBName:     getenv("DB_NAME", "postboard"),
		DBSSLMode:  getenv("DB_SSLMODE", "disable"),

		MongoHost:     getenv("MONGO_HOST", "localhost"),
		MongoUser:     getenv("MONGO_USER", ""),
		MongoPassword: getenv("MONGO_PASSWORD", ""),
		MongoDatabase: getenv("MONGO_DATABASE", "postboard"),

		DynamoDBTable:    getenv("DYNAMODB_TABLE", "posts"),
		DynamoDBRegion:   getenv("DYNAMODB_REGION", "us-east-1"),
		DynamoDBEndpoint: getenv("DYNAMODB_ENDPOINT", ""),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		RequiredScopes: getenvList("AUTH_REQUIRED_SCOPES"),
		AllowOrigins:   getenvList("CORS_ALLOW_ORIGINS"),
	}

	var err error
	if cfg.Port, err = getenvInt("PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.DBPort, err = getenvInt("DB_PORT", 5432); err != nil {
		return nil, err
	}
	if cfg.MongoPort, err = getenvInt("MONGO_PORT", 27017); err != nil {
		return nil, err
	}
	// Show and delete keep their original success flags until clients opt out.
	if cfg.LegacyEnvelope, err = getenvBool("LEGACY_ENVELOPE", true); err != nil {
		return nil, err
	}
	if cfg.DynamoDBSkipCreate, err = getenvBool("DYNAMODB_SKIP_TABLE_CREATION", false); err != nil {
		return nil, err
	}

	switch cfg.Store {
	case StorePostgres, StoreMongo, StoreDynamoDB, StoreMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.Store)
	}
	switch cfg.DBDriver {
	case "postgres", "pgx":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}
	return cfg, nil
}

func (c *Config) SQLConfig() *postboard.SQLConfig {
	return postboard.NewSQLConfig().
		WithDriver(c.DBDriver).
		WithHost(c.DBHost, c.DBPort).
		WithCredentials(c.DBUser, c.DBPassword).
		WithDatabase(c.DBName).
		WithOption("sslmode", c.DBSSLMode)
}

func (c *Config) MongoConfig() *postboard.MongoConfig {
	return postboard.NewMongoConfig().
		WithHost(c.MongoHost, c.MongoPort).
		WithCredentials(c.MongoUser, c.MongoPassword).
		WithDatabase(c.MongoDatabase)
}

func (c *Config) DynamoDBConfig() *postboard.DynamoDBConfig {
	return postboard.NewDynamoDBConfig().
		WithTableName(c.DynamoDBTable).
		WithRegion(c.DynamoDBRegion).
		WithEndpoint(c.DynamoDBEndpoint).
		WithSkipTableCreation(c.DynamoDBSkipCreate)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getenvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
