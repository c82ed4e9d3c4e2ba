package providers

import (
	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/multicreator/mintpipe/internal/config"
	"github.com/multicreator/mintpipe/internal/infrastructure/database"
	"github.com/multicreator/mintpipe/internal/infrastructure/gateway"
	"github.com/multicreator/mintpipe/internal/infrastructure/repository"
	"github.com/multicreator/mintpipe/internal/usecase"
)

// NewDatabase opens a Postgres connection using the configured DSN.
func NewDatabase(conf config.Server) (*gorm.DB, error) {
	return database.NewPostgres(conf.PostgresDsn)
}

// MigrateDatabase applies migrations for the application models.
func MigrateDatabase(db *gorm.DB) error {
	return database.MigratePostgres(db)
}

// NewRedisClient creates the redis client shared by the dedup registry
// and the event service.
func NewRedisClient(conf config.Server) *redis.Client {
	return database.NewRedis(conf.RedisAddr, conf.RedisPassword, conf.RedisDB)
}

// NewMemcache creates a memcache client, or nil when unconfigured.
func NewMemcache(conf config.Server) *memcache.Client {
	if conf.MemcachedAddr == "" {
		return nil
	}
	return database.NewMemcached(conf.MemcachedAddr)
}

// NewDedupRegistry picks the shared redis registry when redis is
// configured, falling back to the process-local one.
func NewDedupRegistry(conf config.Config, rdb *redis.Client) usecase.DedupRegistry {
	if rdb != nil {
		return repository.NewRedisDedupRegistry(rdb, conf.Pipeline.ReservationTTL)
	}
	return repository.NewMemoryDedupRegistry()
}

// NewPrimaryStorage constructs the IPFS backend.
func NewPrimaryStorage(conf config.Storage, mc *memcache.Client) *gateway.IPFSGateway {
	return gateway.NewIPFSGateway(conf.IPFSAPIURL, mc)
}

// NewBackupStorage constructs the Arweave backend.
func NewBackupStorage(conf config.Storage) (*gateway.ArweaveGateway, error) {
	return gateway.NewArweaveGateway(conf.ArweaveNodeURL, conf.ArweaveKeyPath)
}

// NewScorer constructs the originality scorer client.
func NewScorer(conf config.Scorer) *gateway.ScorerGateway {
	return gateway.NewScorerGateway(conf.Endpoint, conf.APIKey, conf.Model)
}

// NewChainClient constructs the contract gateway.
func NewChainClient(conf config.Chain) (*gateway.ChainGateway, error) {
	return gateway.NewChainGateway(conf.RPCEndpoint, conf.ContractAddress, conf.PrivateKey, conf.ChainID)
}
