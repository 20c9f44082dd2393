package cache

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/mottu/patio-proxy/config"
	"github.com/mottu/patio-proxy/diag/telemetry"
	"github.com/mottu/patio-proxy/log"
	"github.com/stretchr/testify/assert"
)

func TestSetupStore_OnlyOneSelected(t *testing.T) {
	s := miniredis.RunT(t)
	store, err := SetupStore(t.Context(), &config.CacheConfig{
		Redis: config.RedisConfig{Addresses: []string{s.Addr()}, Enabled: true},
		MongoDb: config.MongoDbConfig{
			Enabled:    true,
			Url:        "mongodb://localhost:27017",
			Database:   "test_db",
			Collection: "coll",
		},
	}, telemetry.NewEmptyReporter(), log.NewNullLogger())
	assert.NoError(t, err)
	defer store.Shutdown()
	assert.IsType(t, &redisStore{}, store)
	assert.Equal(t, "redis", store.Mode())
}

func TestSetupStore_Memory(t *testing.T) {
	store, err := SetupStore(t.Context(), &config.CacheConfig{Enabled: true}, telemetry.NewEmptyReporter(), log.NewNullLogger())
	assert.NoError(t, err)
	defer store.Shutdown()
	assert.IsType(t, &memoryStore{}, store)
}

func TestSetupStore_RedisInvalidTls(t *testing.T) {
	store, err := SetupStore(t.Context(), &config.CacheConfig{
		Redis: config.RedisConfig{
			Enabled:   true,
			Addresses: []string{"localhost:6379"},
			Tls: config.TlsConfig{
				Enabled:      true,
				Certificates: []config.CertConfig{{Key: "nonexisting", Cert: "nonexisting"}},
			},
		},
	}, telemetry.NewEmptyReporter(), log.NewNullLogger())
	assert.ErrorContains(t, err, "failed to load certificate and key files")
	assert.Nil(t, store)
}

func (s *mongoTestSuite) TestSetupStore() {
	store, err := SetupStore(s.T().Context(), &config.CacheConfig{MongoDb: config.MongoDbConfig{
		Enabled:    true,
		Url:        s.addr,
		Database:   "test_db",
		Collection: "coll",
	}}, telemetry.NewEmptyReporter(), log.NewNullLogger())
	assert.NoError(s.T(), err)
	defer store.Shutdown()
	assert.IsType(s.T(), &mongoDbStore{}, store)
}

func (s *redisTestSuite) TestSetupStore() {
	store, err := SetupStore(s.T().Context(), &config.CacheConfig{Redis: config.RedisConfig{Addresses: []string{"localhost:" + s.dbPort}, Enabled: true}}, telemetry.NewEmptyReporter(), log.NewNullLogger())
	assert.NoError(s.T(), err)
	defer store.Shutdown()
	assert.IsType(s.T(), &redisStore{}, store)
}

func (s *valkeyTestSuite) TestSetupStore() {
	store, err := SetupStore(s.T().Context(), &config.CacheConfig{Redis: config.RedisConfig{Addresses: []string{"localhost:" + s.dbPort}, Enabled: true}}, telemetry.NewEmptyReporter(), log.NewNullLogger())
	assert.NoError(s.T(), err)
	defer store.Shutdown()
	assert.IsType(s.T(), &redisStore{}, store)
}

func (s *dynamoDbTestSuite) TestSetupStore() {
	store, err := SetupStore(s.T().Context(), &config.CacheConfig{DynamoDb: config.DynamoDbConfig{
		Enabled: true,
		Table:   tableName,
		Url:     s.addr,
	}}, telemetry.NewEmptyReporter(), log.NewNullLogger())
	assert.NoError(s.T(), err)
	defer store.Shutdown()
	assert.IsType(s.T(), &dynamoDbStore{}, store)
}
