package internal

import (
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestConfig_Words(t *testing.T) {
	req := require.New(t)

	testCases := []struct {
		name     string
		raw      string
		expected []string
	}{
		{name: "empty", raw: "", expected: []string{}},
		{name: "single word", raw: "spam", expected: []string{"spam"}},
		{name: "comma list with spaces", raw: " spam , scam,phish ", expected: []string{"spam", "scam", "phish"}},
		{name: "blank entries dropped", raw: "spam,,scam,", expected: []string{"spam", "scam"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{BlockedWords: tc.raw}
			req.Equal(tc.expected, cfg.Words())
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		BackendURL:        "https://chat.example.com",
		FilterMode:        "replace",
		HistoryTimeout:    10 * time.Second,
		SweepInterval:     time.Second,
		ReconnectMinDelay: time.Second,
		ReconnectMaxDelay: 30 * time.Second,
		DefaultTTL:        86400,
	}

	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing backend url", mutate: func(c *Config) { c.BackendURL = "" }, wantErr: true},
		{name: "backend url is not a url", mutate: func(c *Config) { c.BackendURL = "not a url" }, wantErr: true},
		{name: "unknown filter mode", mutate: func(c *Config) { c.FilterMode = "silence" }, wantErr: true},
		{name: "warn mode accepted", mutate: func(c *Config) { c.FilterMode = "warn" }},
		{name: "max delay below min delay", mutate: func(c *Config) { c.ReconnectMaxDelay = 10 * time.Millisecond }, wantErr: true},
		{name: "negative default ttl", mutate: func(c *Config) { c.DefaultTTL = -1 }, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			cfg := valid
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr {
				req.Error(err)
				return
			}
			req.NoError(err)
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("BACKEND_URL", "https://chat.example.com")

	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	req.NoError(err)
	req.NoError(cfg.Validate())

	req.Equal("replace", cfg.FilterMode)
	req.Equal(10*time.Second, cfg.HistoryTimeout)
	req.Equal(time.Second, cfg.SweepInterval)
	req.Equal(30*time.Second, cfg.ReconnectMaxDelay)
	req.Equal(int64(86400), cfg.DefaultTTL)
	req.True(cfg.Colours)
}
