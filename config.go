package dynaschema

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "us-east-1"

// Environment variables read by LoadConfig.
const (
	EnvTableName = "DYNASCHEMA_TABLE"
	EnvRegion    = "DYNASCHEMA_REGION"
	EnvEndpoint  = "DYNASCHEMA_ENDPOINT"
	EnvProfile   = "DYNASCHEMA_PROFILE"
)

// Config describes how a table connects to DynamoDB.
type Config struct {
	TableName       string // Physical table name
	Region          string // AWS region (default: us-east-1)
	Endpoint        string // Endpoint override, e.g. DynamoDB Local
	Profile         string // Shared config profile
	AccessKeyID     string // Static credentials; the default chain is used when empty
	SecretAccessKey string
	SessionToken    string
}

// LoadConfig reads the named .env files, or ./.env if present when none are
// named, and builds a Config from the environment. Variables already set in
// the environment take precedence over the files.
func LoadConfig(files ...string) (Config, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return Config{}, fmt.Errorf("failed to load env files: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Config{
		TableName:       os.Getenv(EnvTableName),
		Region:          os.Getenv(EnvRegion),
		Endpoint:        os.Getenv(EnvEndpoint),
		Profile:         os.Getenv(EnvProfile),
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
	}
	if cfg.Region == "" {
		cfg.Region = os.Getenv("AWS_REGION")
	}
	cfg.validate()
	return cfg, nil
}

func (c *Config) validate() {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
}

// NewClient creates a DynamoDB client for the configuration.
func (c Config) NewClient(ctx context.Context) (*dynamodb.Client, error) {
	c.validate()

	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(c.Profile))
	}
	if c.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, c.SessionToken),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
	}), nil
}
