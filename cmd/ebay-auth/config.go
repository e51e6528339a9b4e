package main

import "time"

// Config holds server configuration loaded from environment variables.
// OAuth credentials and endpoints live in internal/config; this covers the
// hosting side only.
type Config struct {
	Port              int           `envconfig:"PORT" default:"8080"`
	RedisURL          string        `envconfig:"REDIS_URL"` // Empty selects in-memory stores
	AttemptTTL        time.Duration `envconfig:"ATTEMPT_TTL" default:"10m"`
	RefreshMargin     time.Duration `envconfig:"REFRESH_MARGIN" default:"60s"`
	SweepInterval     time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
	DefaultReturnTo   string        `envconfig:"DEFAULT_RETURN_TO" default:"/"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"20s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}
