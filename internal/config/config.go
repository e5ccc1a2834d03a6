package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config carries every recognized option with its default.
type Config struct {
	ServerPort string

	StorePath string

	MailboxCapacity int

	BusBrokers      []string
	EventTopic      string
	PoolingSize     uint64
	PublishInterval time.Duration
	SendTimeout     time.Duration
}

// Load reads configuration from the optional .env file and the
// environment, applying defaults for anything unset.
func Load() *Config {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.ReadInConfig()

	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("store.path", "STORE_PATH")
	viper.BindEnv("service.mailbox_capacity", "MAILBOX_CAPACITY")
	viper.BindEnv("bus.brokers", "KAFKA_BROKERS")
	viper.BindEnv("bus.topic", "BALANCE_EVENT_TOPIC")
	viper.BindEnv("bus.pooling_size", "BALANCE_EVENT_POOLING_SIZE")
	viper.BindEnv("bus.publish_interval_ms", "BALANCE_EVENT_PUBLISH_INTERVAL_MS")
	viper.BindEnv("bus.send_timeout_ms", "BALANCE_EVENT_SEND_TIMEOUT_MS")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("store.path", "offheap/balance.db")
	viper.SetDefault("service.mailbox_capacity", 1024)
	viper.SetDefault("bus.brokers", "localhost:9092")
	viper.SetDefault("bus.topic", "balance.event")
	viper.SetDefault("bus.pooling_size", 1000)
	viper.SetDefault("bus.publish_interval_ms", 100)
	viper.SetDefault("bus.send_timeout_ms", 1000)

	return &Config{
		ServerPort:      viper.GetString("server.port"),
		StorePath:       viper.GetString("store.path"),
		MailboxCapacity: viper.GetInt("service.mailbox_capacity"),
		BusBrokers:      strings.Split(viper.GetString("bus.brokers"), ","),
		EventTopic:      viper.GetString("bus.topic"),
		PoolingSize:     viper.GetUint64("bus.pooling_size"),
		PublishInterval: time.Duration(viper.GetInt64("bus.publish_interval_ms")) * time.Millisecond,
		SendTimeout:     time.Duration(viper.GetInt64("bus.send_timeout_ms")) * time.Millisecond,
	}
}
