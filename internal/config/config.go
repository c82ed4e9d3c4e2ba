package config

import (
	"os"
	"time"

	"github.com/go-yaml/yaml"
)

type Config struct {
	Server   Server   `yaml:"server"`
	Pipeline Pipeline `yaml:"pipeline"`
	Storage  Storage  `yaml:"storage"`
	Scorer   Scorer   `yaml:"scorer"`
	Chain    Chain    `yaml:"chain"`
}

type Server struct {
	Listen        string `yaml:"listen"`
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

type Pipeline struct {
	SimilarityThreshold int           `yaml:"similarityThreshold"`
	ScoreAttempts       int           `yaml:"scoreAttempts"`
	StorageAttempts     int           `yaml:"storageAttempts"`
	AttemptTimeout      time.Duration `yaml:"attemptTimeout"`
	RetryInterval       time.Duration `yaml:"retryInterval"`
	ConfirmTimeout      time.Duration `yaml:"confirmTimeout"`
	ConfirmPollInterval time.Duration `yaml:"confirmPollInterval"`
	ReservationTTL      time.Duration `yaml:"reservationTTL"`
}

type Storage struct {
	IPFSAPIURL     string `yaml:"ipfsApiUrl"`
	ArweaveNodeURL string `yaml:"arweaveNodeUrl"`
	ArweaveKeyPath string `yaml:"arweaveKeyPath"`
}

type Scorer struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
	Model    string `yaml:"model"`
}

type Chain struct {
	RPCEndpoint     string `yaml:"rpcEndpoint"`
	ContractAddress string `yaml:"contractAddress"`
	PrivateKey      string `yaml:"privatekey"`
	ChainID         int64  `yaml:"chainID"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	config.applyDefaults()

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8000"
	}
	if c.Pipeline.SimilarityThreshold == 0 {
		c.Pipeline.SimilarityThreshold = 30
	}
	if c.Pipeline.ScoreAttempts == 0 {
		c.Pipeline.ScoreAttempts = 3
	}
	if c.Pipeline.StorageAttempts == 0 {
		c.Pipeline.StorageAttempts = 3
	}
	if c.Pipeline.AttemptTimeout == 0 {
		c.Pipeline.AttemptTimeout = 15 * time.Second
	}
	if c.Pipeline.RetryInterval == 0 {
		c.Pipeline.RetryInterval = 500 * time.Millisecond
	}
	if c.Pipeline.ConfirmTimeout == 0 {
		c.Pipeline.ConfirmTimeout = 3 * time.Minute
	}
	if c.Pipeline.ConfirmPollInterval == 0 {
		c.Pipeline.ConfirmPollInterval = 5 * time.Second
	}
	if c.Pipeline.ReservationTTL == 0 {
		c.Pipeline.ReservationTTL = 24 * time.Hour
	}
	if c.Scorer.Model == "" {
		c.Scorer.Model = "gpt-4"
	}
}
