package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/mottu/patio-proxy/config"
	"github.com/mottu/patio-proxy/diag/telemetry"
	"github.com/mottu/patio-proxy/log"
)

const ttlName = "ttl"

type dynamoDbStore struct {
	dynamoDb *dynamodb.Client
	table    *string
	log      log.Logger
}

func newDynamoDb(ctx context.Context, conf *config.DynamoDbConfig, telemetryReporter telemetry.Reporter, log log.Logger) (External, error) {
	awsCtx, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Errorf("couldn't read aws config for DynamoDB: %s", err)
		return nil, err
	}
	telemetryReporter.InstrumentAws(&awsCtx)
	var opts []func(*dynamodb.Options)
	if conf.Url != "" {
		opts = append(opts, func(options *dynamodb.Options) {
			options.BaseEndpoint = aws.String(conf.Url)
		})
	}
	log.Reportf("using DynamoDB for cache storage")
	return &dynamoDbStore{
		dynamoDb: dynamodb.NewFromConfig(awsCtx, opts...),
		table:    aws.String(conf.Table),
		log:      log,
	}, nil
}

func (d *dynamoDbStore) Get(ctx context.Context, key string) ([]byte, error) {
	res, err := d.dynamoDb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: d.table,
		Key: map[string]types.AttributeValue{
			keyName: &types.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	payload, ok := res.Item[payloadName]
	if !ok {
		return nil, ErrNotFound
	}
	// expired items linger until the TTL sweeper removes them
	if ttl, ok := res.Item[ttlName].(*types.AttributeValueMemberN); ok {
		if sec, err := strconv.ParseInt(ttl.Value, 10, 64); err == nil && time.Now().Unix() >= sec {
			return nil, ErrNotFound
		}
	}
	switch v := payload.(type) {
	case *types.AttributeValueMemberB:
		return v.Value, nil
	default:
		return nil, fmt.Errorf("invalid item under key '%s'", key)
	}
}

func (d *dynamoDbStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	item := map[string]types.AttributeValue{
		keyName:     &types.AttributeValueMemberS{Value: key},
		payloadName: &types.AttributeValueMemberB{Value: value},
	}
	if exp := expiresAt(time.Now(), ttl); !exp.IsZero() {
		// DynamoDB TTL has a one second resolution
		item[ttlName] = &types.AttributeValueMemberN{Value: strconv.FormatInt(exp.Add(time.Second-1).Unix(), 10)}
	}
	_, err := d.dynamoDb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: d.table,
		Item:      item,
	})
	return err
}

func (d *dynamoDbStore) Mode() string {
	return "dynamodb"
}

func (d *dynamoDbStore) Shutdown() {
	d.log.Reportf("shutdown complete")
}
