package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MonitorAddress string `mapstructure:"monitor_address"`
}

type DatabaseConfig struct {
	// Driver selects the store implementation: "gorm", "sql" or "" to run
	// without a record store.
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// GameConfig carries the fixed game settings for every room.
type GameConfig struct {
	Pairs              int `mapstructure:"pairs"`
	TurnSeconds        int `mapstructure:"turn_seconds"`
	FlipDelayMS        int `mapstructure:"flip_delay_ms"`
	ReconnectTimeoutMS int `mapstructure:"reconnect_timeout_ms"`
	StartDelayMS       int `mapstructure:"start_delay_ms"`
}

func (g GameConfig) FlipDelay() time.Duration {
	return time.Duration(g.FlipDelayMS) * time.Millisecond
}

func (g GameConfig) ReconnectTimeout() time.Duration {
	return time.Duration(g.ReconnectTimeoutMS) * time.Millisecond
}

func (g GameConfig) StartDelay() time.Duration {
	return time.Duration(g.StartDelayMS) * time.Millisecond
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_address", ":8080")
	viper.SetDefault("server.rpc_address", ":8081")
	viper.SetDefault("server.monitor_address", ":9090")
	viper.SetDefault("game.pairs", 10)
	viper.SetDefault("game.turn_seconds", 15)
	viper.SetDefault("game.flip_delay_ms", 1000)
	viper.SetDefault("game.reconnect_timeout_ms", 30000)
	viper.SetDefault("game.start_delay_ms", 1500)

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
