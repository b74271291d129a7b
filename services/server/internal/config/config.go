// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package config

import (
	"time"

	"github.com/nuwa-agi/nuwa/internal/ai"
	"github.com/nuwa-agi/nuwa/internal/analytics/mq"
	"github.com/nuwa-agi/nuwa/internal/payment"
	"github.com/nuwa-agi/nuwa/internal/realtime"
	"github.com/nuwa-agi/nuwa/internal/telemetry"
	"github.com/zeromicro/go-zero/rest"
)

type Config struct {
	rest.RestConf
	Database  DatabaseConfig
	Auth      AuthConfig
	Engine    EngineConfig
	Realtime  realtime.Config
	Relay     RelayConfig
	Analytics mq.Config
	AI        ai.Config
	Payment   payment.Config
	Telemetry telemetry.Config
	Audit     AuditConfig
	FileLog   FileLogConfig
}

type DatabaseConfig struct {
	// postgres://, mysql://, sqlite:///path, file:... or :memory:
	DSN string `json:",optional,env=NUWA_DB_DSN"`
}

type AuthConfig struct {
	JWTSecret   string        `json:",env=NUWA_JWT_SECRET"`
	TokenTTL    time.Duration `json:",default=24h"`
	DefaultTeam string        `json:",default=default"`
}

type EngineConfig struct {
	Interval time.Duration `json:",default=1s"`
	Step     float64       `json:",default=0.1"`
}

// RelayConfig enables cross-instance broadcast over redis pub/sub.
type RelayConfig struct {
	RedisURL string `json:",optional,env=NUWA_RELAY_REDIS"`
	Topic    string `json:",default=nuwa:broadcast"`
}

type AuditConfig struct {
	Path string `json:",optional"`
}

type FileLogConfig struct {
	File       string `json:",optional"`
	MaxSize    int    `json:",default=100"`
	MaxBackups int    `json:",default=7"`
	MaxAge     int    `json:",default=30"`
	Compress   bool   `json:",optional"`
}
