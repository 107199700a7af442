package internal

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = validator.New()

// Config defines the client environment variables.
type Config struct {
	BackendURL        string        `env:"BACKEND_URL,required=true" validate:"required,url"`
	BlockedWords      string        `env:"BLOCKED_WORDS"`
	FilterMode        string        `env:"FILTER_MODE,default=replace" validate:"oneof=replace block warn"`
	HistoryTimeout    time.Duration `env:"HISTORY_TIMEOUT,default=10s" validate:"gt=0"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL,default=1s" validate:"gt=0"`
	ReconnectMinDelay time.Duration `env:"RECONNECT_MIN_DELAY,default=1s" validate:"gt=0"`
	ReconnectMaxDelay time.Duration `env:"RECONNECT_MAX_DELAY,default=30s" validate:"gtefield=ReconnectMinDelay"`
	DefaultTTL        int64         `env:"DEFAULT_TTL,default=86400" validate:"gte=0"`
	LogLevel          string        `env:"LOG_LEVEL,default=info"`
	Colours           bool          `env:"COLOURS,default=true"`
}

// Validate checks cross-field constraints after env unmarshaling.
func (c Config) Validate() error {
	return validate.Struct(c)
}

// Words splits BLOCKED_WORDS into a clean list, dropping blanks.
func (c Config) Words() []string {
	parts := strings.Split(c.BlockedWords, ",")
	trimmed := lo.Map(parts, func(p string, _ int) string { return strings.TrimSpace(p) })
	return lo.Filter(trimmed, func(p string, _ int) bool { return p != "" })
}
