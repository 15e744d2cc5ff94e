package config

import "time"

// Config is the root configuration of the routing gateway.
type Config struct {
	Logger    LoggerConfig    `yaml:"logger"`
	Server    ServerConfig    `yaml:"http-server"`
	ZooKeeper ZooKeeperConfig `yaml:"zookeeper"`
	Routing   RoutingConfig   `yaml:"routing"`
	Client    ClientConfig    `yaml:"client"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type ServerConfig struct {
	Port              int           `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
}

// ZooKeeperConfig locates the partition metadata source.
type ZooKeeperConfig struct {
	Servers        []string      `yaml:"servers"`
	RootPath       string        `yaml:"root_path"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
}

// RoutingConfig controls routing map construction retries. An incomplete
// metadata snapshot is retried up to FetchRetries times with RetryDelay between
// attempts before giving up.
type RoutingConfig struct {
	Collection   string        `yaml:"collection"`
	FetchRetries int           `yaml:"fetch_retries"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
}

// ClientConfig covers outgoing requests to partition nodes.
type ClientConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Default returns a baseline development config.
func Default() Config {
	return Config{
		Logger: LoggerConfig{
			Level: "DEBUG",
			JSON:  false,
		},
		Server: ServerConfig{
			Port:              8080,
			ReadHeaderTimeout: time.Second,
		},
		ZooKeeper: ZooKeeperConfig{
			Servers:        []string{"127.0.0.1:2181"},
			RootPath:       "/rangedb",
			SessionTimeout: 5 * time.Second,
		},
		Routing: RoutingConfig{
			Collection:   "default",
			FetchRetries: 5,
			RetryDelay:   200 * time.Millisecond,
		},
		Client: ClientConfig{
			RequestTimeout: 3 * time.Second,
		},
	}
}
