package internal

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"chat-bridge/runtime"
	"chat-bridge/services"
)

var validate = validator.New()

type Config struct {
	InstanceURL   string `env:"INSTANCE_URL,required=true" validate:"required,url"`
	ContactFlowID string `env:"CONTACT_FLOW_ID,required=true" validate:"required"`
	DisplayName   string `env:"DISPLAY_NAME,required=true" validate:"required"`
	LogLevel      string `env:"LOG_LEVEL,required=true"`

	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT,required=true" validate:"gt=0"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,required=true" validate:"gt=0"`
	SinkTimeout    time.Duration `env:"SINK_TIMEOUT,required=true" validate:"gt=0"`
	MetricInterval time.Duration `env:"METRIC_INTERVAL,required=true" validate:"gt=0"`

	MaxReconnectAttempts  int           `env:"MAX_RECONNECT_ATTEMPTS,required=true" validate:"gt=0"`
	ReconnectInitialDelay time.Duration `env:"RECONNECT_INITIAL_DELAY,required=true" validate:"gt=0"`
	ReconnectMultiplier   float64       `env:"RECONNECT_MULTIPLIER,required=true" validate:"gte=1"`
	ReconnectMaxDelay     time.Duration `env:"RECONNECT_MAX_DELAY,required=true" validate:"gt=0"`

	BufferSize      int    `env:"BUFFER_SIZE,required=true" validate:"gt=0"`
	LimitMessages   *int   `env:"LIMIT_MESSAGES"`
	BadgerFilepath  string `env:"BADGER_FILEPATH,required=true" validate:"required"`
	BlugeFilepath   string `env:"BLUGE_FILEPATH"`
	CensoredWords   string `env:"CENSORED_WORDS"`
	CharReplacement string `env:"CHARACTER_REPLACEMENT,required=true" validate:"required"`
}

// Validate enforces the constraints the env tags cannot express.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := CharacterRune(c.CharReplacement); err != nil {
		return err
	}
	return nil
}

// RetryPolicy builds the reconnection policy from the env knobs.
func (c Config) RetryPolicy() runtime.RetryPolicy {
	return runtime.RetryPolicy{
		MaxAttempts:  c.MaxReconnectAttempts,
		InitialDelay: c.ReconnectInitialDelay,
		Multiplier:   c.ReconnectMultiplier,
		MaxDelay:     c.ReconnectMaxDelay,
	}
}

// ServiceConfig builds the session manager configuration.
func (c Config) ServiceConfig() services.Config {
	return services.Config{
		ConnectTimeout: c.ConnectTimeout,
		SinkTimeout:    c.SinkTimeout,
		RetryPolicy:    c.RetryPolicy(),
	}
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
