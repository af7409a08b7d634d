package internal

import (
	"chat-guard/errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	ClassifierModeProcess  = "process"
	ClassifierModeKeywords = "keywords"
)

var validate = validator.New()

// ClassifierConfig is shared by both endpoints.
type ClassifierConfig struct {
	Mode          string        `env:"CLASSIFIER_MODE,default=process" validate:"oneof=process keywords"`
	Command       string        `env:"CLASSIFIER_COMMAND,default=python predict.py" validate:"required_if=Mode process"`
	Timeout       time.Duration `env:"CLASSIFIER_TIMEOUT,default=3s" validate:"gt=0"`
	MaxConcurrent int64         `env:"CLASSIFIER_MAX_CONCURRENT,default=8" validate:"gte=1"`
	KeywordsPath  string        `env:"CLASSIFIER_KEYWORDS_PATH" validate:"required_if=Mode keywords"`
	SpamThreshold float64       `env:"SPAM_THRESHOLD,default=0.80" validate:"gte=0,lte=1"`
}

type ServerConfig struct {
	Classifier ClassifierConfig

	Address              string        `env:"SERVER_ADDRESS,default=127.0.0.1:6001" validate:"hostname_port"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64" validate:"gte=1"`
	QueueSize            int           `env:"QUEUE_SIZE,default=16" validate:"gte=1"`
	BufferSize           int           `env:"BUFFER_SIZE,default=256" validate:"gte=1"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=2s" validate:"gt=0"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL,default=30s" validate:"gt=0"`
	ChatLogPath          string        `env:"CHAT_LOG_PATH,default=chat_log.txt"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH"`
	BlugeFilepath        string        `env:"BLUGE_FILEPATH" validate:"required_with=BadgerFilepath"`
	AdminPort            int           `env:"ADMIN_PORT" validate:"gte=0,lte=65535"`
	DebugPort            int           `env:"DEBUG_PORT,default=8081" validate:"gte=0,lte=65535"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	Colours              bool          `env:"COLOURS,default=true"`
}

type ClientConfig struct {
	Classifier ClassifierConfig

	ServerAddress   string        `env:"SERVER_ADDRESS,default=127.0.0.1:6001" validate:"hostname_port"`
	DialRetries     uint64        `env:"DIAL_RETRIES,default=3"`
	DialBackoff     time.Duration `env:"DIAL_BACKOFF,default=200ms" validate:"gt=0"`
	QueueSize       int           `env:"QUEUE_SIZE,default=16" validate:"gte=1"`
	BufferSize      int           `env:"BUFFER_SIZE,default=64" validate:"gte=1"`
	SinkTimeout     time.Duration `env:"SINK_TIMEOUT,default=2s" validate:"gt=0"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
	ChatLogPath     string        `env:"CHAT_LOG_PATH"`
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
	Colours         bool          `env:"COLOURS,default=true"`
}

// Validate runs the semantic checks the env tags cannot express.
func Validate(config any) error {
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}
	return nil
}

// CommandLine splits the classifier command into the program and its
// leading arguments. Quoting is not supported.
func (c ClassifierConfig) CommandLine() (string, []string) {
	fields := strings.Fields(c.Command)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}
