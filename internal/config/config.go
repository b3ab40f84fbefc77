package config

import "time"

type Config struct {
	Service     *ServiceConfig
	Redis       *RedisConfig
	Postgres    *PostgresConfig
	Expo        *ExpoConfig
	Tracer      *TracerConfig
	Worker      *WorkerConfig
	Logger      *LoggerConfig
	SecretToken string
	TokenTTL    time.Duration
}

type ServiceConfig struct {
	Name string
	Env  string
	Addr string
}

type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

type ExpoConfig struct {
	URL     string
	Timeout time.Duration
}

type TracerConfig struct {
	Address string
}

type WorkerConfig struct {
	MessageGroup string
}

type LoggerConfig struct {
	Level  string
	Format string
}
