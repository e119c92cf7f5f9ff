package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		InstanceURL:           "https://acme.my.connect.aws/",
		ContactFlowID:         "flow-1",
		DisplayName:           "Alice",
		LogLevel:              "debug",
		ConnectTimeout:        10 * time.Second,
		RequestTimeout:        10 * time.Second,
		SinkTimeout:           time.Second,
		MetricInterval:        30 * time.Second,
		MaxReconnectAttempts:  5,
		ReconnectInitialDelay: 2 * time.Second,
		ReconnectMultiplier:   2.0,
		ReconnectMaxDelay:     30 * time.Second,
		BufferSize:            64,
		BadgerFilepath:        "/tmp/badger",
		CharReplacement:       "*",
	}
}

func TestConfig_Validate(t *testing.T) {
	req := require.New(t)
	req.NoError(validConfig().Validate())
}

func TestConfig_Validate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"instance URL is not a URL", func(c *Config) { c.InstanceURL = "not-a-url" }},
		{"missing contact flow", func(c *Config) { c.ContactFlowID = "" }},
		{"zero connect timeout", func(c *Config) { c.ConnectTimeout = 0 }},
		{"zero reconnect attempts", func(c *Config) { c.MaxReconnectAttempts = 0 }},
		{"multiplier below one", func(c *Config) { c.ReconnectMultiplier = 0.5 }},
		{"multi-rune replacement", func(c *Config) { c.CharReplacement = "**" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_RetryPolicy(t *testing.T) {
	req := require.New(t)
	policy := validConfig().RetryPolicy()
	req.Equal(5, policy.MaxAttempts)
	req.Equal(2*time.Second, policy.InitialDelay)
	req.Equal(2.0, policy.Multiplier)
	req.Equal(30*time.Second, policy.MaxDelay)
}

func TestCharacterRune(t *testing.T) {
	req := require.New(t)

	r, err := CharacterRune("*")
	req.NoError(err)
	req.Equal('*', r)

	_, err = CharacterRune("")
	req.Error(err)
	_, err = CharacterRune("ab")
	req.Error(err)
}
