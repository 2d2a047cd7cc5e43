package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Games    GamesConfig    `mapstructure:"games"`
	Rounds   RoundsConfig   `mapstructure:"rounds"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Mines    MinesConfig    `mapstructure:"mines"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// GamesConfig holds the default bet bounds seeded into the game config
// table on first start. The admin surface mutates them afterwards.
type GamesConfig struct {
	MinBet int64 `mapstructure:"min_bet"` // paise
	MaxBet int64 `mapstructure:"max_bet"` // paise
}

type RoundsConfig struct {
	BettingSeconds int `mapstructure:"betting_seconds"`
	LockedSeconds  int `mapstructure:"locked_seconds"`
}

func (r RoundsConfig) BettingDuration() time.Duration {
	return time.Duration(r.BettingSeconds) * time.Second
}

func (r RoundsConfig) LockedDuration() time.Duration {
	return time.Duration(r.LockedSeconds) * time.Second
}

// FeedConfig controls which settled bets are echoed to all spectators.
type FeedConfig struct {
	MinStake      int64 `mapstructure:"min_stake"`      // paise
	MinMultiplier int64 `mapstructure:"min_multiplier"` // hundredths
}

type MinesConfig struct {
	GraceSeconds int `mapstructure:"grace_seconds"`
}

func (m MinesConfig) GracePeriod() time.Duration {
	return time.Duration(m.GraceSeconds) * time.Second
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_address", ":8080")
	viper.SetDefault("server.rpc_address", ":8081")
	viper.SetDefault("server.metrics_address", ":9100")
	viper.SetDefault("games.min_bet", 100)      // Rs 1.00
	viper.SetDefault("games.max_bet", 10000000) // Rs 100,000
	viper.SetDefault("rounds.betting_seconds", 20)
	viper.SetDefault("rounds.locked_seconds", 3)
	viper.SetDefault("feed.min_stake", 100000)    // Rs 1,000
	viper.SetDefault("feed.min_multiplier", 1000) // 10.00x
	viper.SetDefault("mines.grace_seconds", 60)

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
