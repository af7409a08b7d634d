package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// CHAT_E2E_ADDR is the chat server under test; the suites skip when it is empty
	ServerAddr string `envconfig:"CHAT_E2E_ADDR"`
	// CHAT_E2E_ADMIN_ADDR is the gRPC health endpoint of the same server, optional
	AdminAddr string `envconfig:"CHAT_E2E_ADMIN_ADDR"`
	// CHAT_E2E_SPAM must be classified as spam by the server predictor
	SpamText string `envconfig:"CHAT_E2E_SPAM" default:"win the casino lottery now"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// E2E_TIMEOUT bounds every wait for an incoming frame
	Timeout string `envconfig:"E2E_TIMEOUT" default:"5s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
