package cache

import (
	"context"
	"errors"
	"time"

	"github.com/mottu/patio-proxy/config"
	"github.com/mottu/patio-proxy/diag/telemetry"
	"github.com/mottu/patio-proxy/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type mongoDbStore struct {
	mongoDb    *mongo.Client
	collection *mongo.Collection
	log        log.Logger
}

type entry struct {
	Key       string     `bson:"key"`
	Payload   []byte     `bson:"payload"`
	ExpiresAt *time.Time `bson:"expiresAt,omitempty"`
}

func newMongoDb(ctx context.Context, conf *config.MongoDbConfig, telemetryReporter telemetry.Reporter, log log.Logger) (External, error) {
	opts := options.Client().ApplyURI(conf.Url)
	telemetryReporter.InstrumentMongoDb(opts)
	if conf.Tls.Enabled {
		t, err := conf.Tls.LoadTlsOptions()
		if err != nil {
			log.Errorf("failed to configure TLS for MongoDB: %s", err)
			return nil, err
		}
		opts.SetTLSConfig(t)
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		log.Errorf("couldn't connect to MongoDB: %s", err)
		return nil, err
	}
	collection := client.Database(conf.Database).Collection(conf.Collection)
	_, err = collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.M{keyName: 1},
			Options: options.Index().SetUnique(true),
		},
		{
			// documents without an expiresAt field (tag markers) are never removed
			Keys:    bson.M{expiresAtName: 1},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})
	if err != nil {
		log.Errorf("couldn't create the indexes in the '%s' MongoDB collection: %s", conf.Collection, err)
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Reportf("using MongoDB for cache storage")
	return &mongoDbStore{
		mongoDb:    client,
		collection: collection,
		log:        log,
	}, nil
}

func (m *mongoDbStore) Get(ctx context.Context, key string) ([]byte, error) {
	var result entry
	err := m.collection.FindOne(ctx, bson.M{keyName: key}).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	// the TTL monitor only runs once a minute
	if result.ExpiresAt != nil && !time.Now().Before(*result.ExpiresAt) {
		return nil, ErrNotFound
	}
	return result.Payload, nil
}

func (m *mongoDbStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	doc := entry{Key: key, Payload: value}
	if exp := expiresAt(time.Now(), ttl); !exp.IsZero() {
		doc.ExpiresAt = &exp
	}
	_, err := m.collection.ReplaceOne(ctx, bson.M{keyName: key}, doc, options.Replace().SetUpsert(true))
	return err
}

func (m *mongoDbStore) Mode() string {
	return "mongodb"
}

func (m *mongoDbStore) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := m.mongoDb.Disconnect(ctx)
	if err != nil {
		m.log.Errorf("shutdown error: %s", err)
	}
	m.log.Reportf("shutdown complete")
}
