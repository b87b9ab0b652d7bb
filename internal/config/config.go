package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	pkgconfig "github.com/weiawesome/hybrid-relay/pkg/config"
	"github.com/weiawesome/hybrid-relay/pkg/database"
	"github.com/weiawesome/hybrid-relay/pkg/pubsub"
)

// Registry conflict policies.
const (
	ConflictOverwrite = "overwrite"
	ConflictReject    = "reject"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Auth      AuthConfig
	Database  database.Config
	Registry  RegistryConfig
	Cluster   ClusterConfig
	Kafka     KafkaConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type RegistryConfig struct {
	Driver         string // memory, redis
	ConflictPolicy string `mapstructure:"conflict_policy"`
	Redis          RegistryRedisConfig
}

type RegistryRedisConfig struct {
	Address           string
	Password          string
	DB                int
	Prefix            string
	KeyTTL            time.Duration `mapstructure:"key_ttl"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

type ClusterConfig struct {
	Enabled    bool
	InstanceID string `mapstructure:"instance_id"`
	PubSub     pubsub.Config
}

type KafkaConfig struct {
	Enabled    bool
	Brokers    string
	Topic      string
	Partitions int
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads the configuration. configFile may be empty, in which case
// config.yaml is searched in ./config and the working directory.
func Load(configFile string) (*Config, error) {
	v, err := pkgconfig.Load(configFile, "./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("websocket.ping_interval", "25s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 1<<20)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("websocket.allowed_origins", []string{})
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.file_path", "hybrid.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", 30)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("registry.driver", "memory")
	v.SetDefault("registry.conflict_policy", ConflictOverwrite)
	v.SetDefault("registry.redis.address", "localhost:6379")
	v.SetDefault("registry.redis.db", 0)
	v.SetDefault("registry.redis.prefix", "relay")
	v.SetDefault("registry.redis.key_ttl", "60s")
	v.SetDefault("registry.redis.heartbeat_interval", "20s")
	v.SetDefault("cluster.enabled", false)
	v.SetDefault("cluster.instance_id", "")
	v.SetDefault("cluster.pubsub.driver", "redis")
	v.SetDefault("cluster.pubsub.redis.address", "localhost:6379")
	v.SetDefault("cluster.pubsub.redis.pool_size", 10)
	v.SetDefault("cluster.pubsub.redis.read_timeout", "3s")
	v.SetDefault("cluster.pubsub.redis.write_timeout", "3s")
	v.SetDefault("cluster.pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("cluster.pubsub.kafka.group_id", "hybrid-relay")
	v.SetDefault("cluster.pubsub.kafka.partitions", 4)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "broadcast-events")
	v.SetDefault("kafka.partitions", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("auth.issuer", "JWT_ISSUER")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.file_path", "DB_FILE_PATH")
	v.BindEnv("registry.driver", "REGISTRY_DRIVER")
	v.BindEnv("registry.conflict_policy", "REGISTRY_CONFLICT_POLICY")
	v.BindEnv("registry.redis.address", "REDIS_ADDRESS")
	v.BindEnv("registry.redis.password", "REDIS_PASSWORD")
	v.BindEnv("cluster.enabled", "CLUSTER_ENABLED")
	v.BindEnv("cluster.instance_id", "INSTANCE_ID")
	v.BindEnv("cluster.pubsub.driver", "CLUSTER_PUBSUB_DRIVER")
	v.BindEnv("cluster.pubsub.redis.address", "REDIS_ADDRESS")
	v.BindEnv("cluster.pubsub.redis.password", "REDIS_PASSWORD")
	v.BindEnv("cluster.pubsub.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("cluster.pubsub.kafka.group_id", "KAFKA_PUBSUB_GROUP_ID")
	v.BindEnv("kafka.enabled", "KAFKA_ENABLED")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_BROADCAST_TOPIC")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.Server.ShutdownTimeout = parseDuration(v, "server.shutdown_timeout", 10*time.Second)
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 25*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Auth.TokenTTL = parseDuration(v, "auth.token_ttl", 24*time.Hour)
	cfg.Registry.Redis.KeyTTL = parseDuration(v, "registry.redis.key_ttl", 60*time.Second)
	cfg.Registry.Redis.HeartbeatInterval = parseDuration(v, "registry.redis.heartbeat_interval", 20*time.Second)
	cfg.Cluster.PubSub.Redis.ReadTimeout = parseDuration(v, "cluster.pubsub.redis.read_timeout", 3*time.Second)
	cfg.Cluster.PubSub.Redis.WriteTimeout = parseDuration(v, "cluster.pubsub.redis.write_timeout", 3*time.Second)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that have no usable default.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret (JWT_SECRET) is required")
	}
	if c.WebSocket.PingInterval >= c.WebSocket.PongWait {
		return fmt.Errorf("websocket.ping_interval must be shorter than websocket.pong_wait")
	}
	switch c.Registry.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported registry driver: %s", c.Registry.Driver)
	}
	switch c.Registry.ConflictPolicy {
	case ConflictOverwrite, ConflictReject:
	default:
		return fmt.Errorf("unsupported registry conflict policy: %s", c.Registry.ConflictPolicy)
	}
	return nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
