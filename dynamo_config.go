package postboard

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

type DynamoDBConfig struct {
	TableName         string
	Region            string
	Endpoint          string
	SkipTableCreation bool
}

func NewDynamoDBConfig() *DynamoDBConfig {
	return &DynamoDBConfig{
		TableName: "posts",
		Region:    "us-east-1",
	}
}

func (c *DynamoDBConfig) WithTableName(name string) *DynamoDBConfig {
	c.TableName = name
	return c
}

func (c *DynamoDBConfig) WithRegion(region string) *DynamoDBConfig {
	c.Region = region
	return c
}

// WithEndpoint points the client at a local or emulated endpoint such as dynamodb-local.
func (c *DynamoDBConfig) WithEndpoint(endpoint string) *DynamoDBConfig {
	c.Endpoint = endpoint
	return c
}

func (c *DynamoDBConfig) WithSkipTableCreation(skip bool) *DynamoDBConfig {
	c.SkipTableCreation = skip
	return c
}

// NewDynamoDBClient loads the default AWS configuration for the region. A custom endpoint
// gets static dummy credentials, which is what dynamodb-local expects.
func NewDynamoDBClient(ctx context.Context, c *DynamoDBConfig) (*dynamodb.Client, error) {
	opts := []func(*awsConfig.LoadOptions) error{awsConfig.WithRegion(c.Region)}
	if c.Endpoint != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "")))
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
	}), nil
}
