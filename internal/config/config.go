package config

import (
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Ticket    TicketConfig
	Kafka     KafkaConfig
	Storage   StorageConfig
	Env       string
	CORS      CORSConfig
	Analytics AnalyticsConfig
}

var (
	configInstance *Config
	once           sync.Once
)

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type RedisConfig struct {
	URI          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type JWTConfig struct {
	Secret         string
	ExpirationTime time.Duration
}

type TicketConfig struct {
	Secret string
	TTL    time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type AnalyticsConfig struct {
	FlushInterval  time.Duration
	ActiveWindow   time.Duration
	SnapshotWindow time.Duration
}

// IsProduction gates the trusted-origin fallback on the analytics upgrade.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func Load() (*Config, error) {
	once.Do(func() {
		viper.SetDefault("SOFTADASTRA_HOST", "0.0.0.0")
		viper.SetDefault("SOFTADASTRA_PORT", "8080")
		viper.SetDefault("SOFTADASTRA_ENV", "development")
		viper.SetDefault("SOFTADASTRA_READ_TIMEOUT", 30*time.Second)
		viper.SetDefault("SOFTADASTRA_WRITE_TIMEOUT", 30*time.Second)
		viper.SetDefault("SOFTADASTRA_IDLE_TIMEOUT", 60*time.Second)
		viper.SetDefault("SOFTADASTRA_JWT_SECRET", "secret")
		viper.SetDefault("SOFTADASTRA_JWT_EXPIRE", "24h")
		viper.SetDefault("SOFTADASTRA_TICKET_SECRET", "ticket-secret")
		viper.SetDefault("SOFTADASTRA_TICKET_TTL", "45s")
		viper.SetDefault("SOFTADASTRA_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
		viper.SetDefault("MYSQL_HOST", "localhost")
		viper.SetDefault("MYSQL_PORT", "3306")
		viper.SetDefault("MYSQL_USER", "softadastra")
		viper.SetDefault("MYSQL_PASSWORD", "password")
		viper.SetDefault("MYSQL_DB", "softadastra")
		viper.SetDefault("REDIS_URL", "redis://127.0.0.1:6379/0")
		viper.SetDefault("REDIS_POOL_SIZE", 100)
		viper.SetDefault("REDIS_MIN_IDLE_CONNS", 10)
		viper.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
		viper.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
		viper.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)
		viper.SetDefault("KAFKA_BROKERS", "localhost:9092")
		viper.SetDefault("KAFKA_TOPIC", "analytics-events")
		viper.SetDefault("MINIO_ENDPOINT", "localhost:9000")
		viper.SetDefault("MINIO_ACCESS_KEY", "minioadmin")
		viper.SetDefault("MINIO_SECRET_KEY", "minioadmin")
		viper.SetDefault("MINIO_BUCKET", "softadastra-uploads")
		viper.SetDefault("ANALYTICS_FLUSH_INTERVAL", 2*time.Second)
		viper.SetDefault("ANALYTICS_ACTIVE_WINDOW", 5*time.Minute)
		viper.SetDefault("ANALYTICS_SNAPSHOT_WINDOW", 24*time.Hour)
		viper.AutomaticEnv()

		configInstance = &Config{
			Server: ServerConfig{
				Host:         viper.GetString("SOFTADASTRA_HOST"),
				Port:         viper.GetString("SOFTADASTRA_PORT"),
				ReadTimeout:  viper.GetDuration("SOFTADASTRA_READ_TIMEOUT"),
				WriteTimeout: viper.GetDuration("SOFTADASTRA_WRITE_TIMEOUT"),
				IdleTimeout:  viper.GetDuration("SOFTADASTRA_IDLE_TIMEOUT"),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("MYSQL_HOST"),
				Port:     viper.GetString("MYSQL_PORT"),
				User:     viper.GetString("MYSQL_USER"),
				Password: viper.GetString("MYSQL_PASSWORD"),
				DBName:   viper.GetString("MYSQL_DB"),
			},
			Redis: RedisConfig{
				URI:          viper.GetString("REDIS_URL"),
				PoolSize:     viper.GetInt("REDIS_POOL_SIZE"),
				MinIdleConns: viper.GetInt("REDIS_MIN_IDLE_CONNS"),
				DialTimeout:  viper.GetDuration("REDIS_DIAL_TIMEOUT"),
				ReadTimeout:  viper.GetDuration("REDIS_READ_TIMEOUT"),
				WriteTimeout: viper.GetDuration("REDIS_WRITE_TIMEOUT"),
			},
			JWT: JWTConfig{
				Secret:         viper.GetString("SOFTADASTRA_JWT_SECRET"),
				ExpirationTime: viper.GetDuration("SOFTADASTRA_JWT_EXPIRE"),
			},
			Ticket: TicketConfig{
				Secret: viper.GetString("SOFTADASTRA_TICKET_SECRET"),
				TTL:    viper.GetDuration("SOFTADASTRA_TICKET_TTL"),
			},
			Kafka: KafkaConfig{
				Brokers: strings.Split(viper.GetString("KAFKA_BROKERS"), ","),
				Topic:   viper.GetString("KAFKA_TOPIC"),
			},
			Storage: StorageConfig{
				Endpoint:  viper.GetString("MINIO_ENDPOINT"),
				AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
				SecretKey: viper.GetString("MINIO_SECRET_KEY"),
				Bucket:    viper.GetString("MINIO_BUCKET"),
			},
			Env: viper.GetString("SOFTADASTRA_ENV"),
			CORS: CORSConfig{
				AllowedOrigins: strings.Split(viper.GetString("SOFTADASTRA_ALLOWED_ORIGINS"), ","),
			},
			Analytics: AnalyticsConfig{
				FlushInterval:  viper.GetDuration("ANALYTICS_FLUSH_INTERVAL"),
				ActiveWindow:   viper.GetDuration("ANALYTICS_ACTIVE_WINDOW"),
				SnapshotWindow: viper.GetDuration("ANALYTICS_SNAPSHOT_WINDOW"),
			},
		}
	})
	return configInstance, nil
}
