// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package svc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nuwa-agi/nuwa/internal/ai"
	"github.com/nuwa-agi/nuwa/internal/analytics/mq"
	"github.com/nuwa-agi/nuwa/internal/audit/chain"
	"github.com/nuwa-agi/nuwa/internal/auth/rbac"
	"github.com/nuwa-agi/nuwa/internal/auth/token"
	"github.com/nuwa-agi/nuwa/internal/broadcast"
	"github.com/nuwa-agi/nuwa/internal/db"
	"github.com/nuwa-agi/nuwa/internal/engine"
	"github.com/nuwa-agi/nuwa/internal/payment"
	"github.com/nuwa-agi/nuwa/internal/ports"
	"github.com/nuwa-agi/nuwa/internal/realtime"
	gormrepo "github.com/nuwa-agi/nuwa/internal/repo/gorm"
	"github.com/nuwa-agi/nuwa/internal/repo/gorm/aisessions"
	"github.com/nuwa-agi/nuwa/internal/repo/gorm/payments"
	"github.com/nuwa-agi/nuwa/internal/repo/gorm/simulations"
	usersgorm "github.com/nuwa-agi/nuwa/internal/repo/gorm/users"
	"github.com/nuwa-agi/nuwa/internal/service/assist"
	"github.com/nuwa-agi/nuwa/internal/service/billing"
	"github.com/nuwa-agi/nuwa/internal/service/lifecycle"
	"github.com/nuwa-agi/nuwa/internal/telemetry"
	"github.com/nuwa-agi/nuwa/internal/validation"
	"github.com/nuwa-agi/nuwa/services/server/internal/config"
	"github.com/nuwa-agi/nuwa/services/server/internal/middleware"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest"
	"gorm.io/gorm"
)

type ServiceContext struct {
	Config config.Config

	DB        *gorm.DB
	Users     ports.UsersRepository
	Tokens    *token.Manager
	Bus       *broadcast.Coordinator
	Lifecycle *lifecycle.Orchestrator
	Assist    *assist.Service
	Billing   *billing.Service
	Gateway   *realtime.Gateway
	Telemetry *telemetry.Provider
	Auth      rest.Middleware

	queue       mq.Queue
	audit       *chain.Writer
	relay       *broadcast.RedisRelay
	relayCancel context.CancelFunc
	startedAt   time.Time
}

// Overrides replaces collaborators, mainly for tests. Zero fields keep the
// configured implementation.
type Overrides struct {
	Generator     ai.Generator
	Gateway       payment.Gateway
	EngineOptions []engine.Option
}

func NewServiceContext(c config.Config) *ServiceContext {
	ctx, err := New(c, Overrides{})
	logx.Must(err)
	return ctx
}

func New(c config.Config, o Overrides) (*ServiceContext, error) {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	s := &ServiceContext{Config: c, startedAt: time.Now()}

	tel, err := telemetry.Setup(context.Background(), c.Telemetry)
	if err != nil {
		return nil, err
	}
	s.Telemetry = tel

	gdb, err := db.Open(c.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := gormrepo.AutoMigrate(gdb); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s.DB = gdb

	if c.Audit.Path != "" {
		w, err := chain.NewWriter(ResolveServerPath(c.Audit.Path))
		if err != nil {
			return nil, fmt.Errorf("audit log: %w", err)
		}
		s.audit = w
	}
	s.queue = mq.New(c.Analytics)

	busOpts := []broadcast.Option{broadcast.WithMetrics(tel.Metrics)}
	if c.Relay.RedisURL != "" {
		r, err := broadcast.NewRedisRelay(c.Relay.RedisURL, c.Relay.Topic)
		if err != nil {
			return nil, fmt.Errorf("broadcast relay: %w", err)
		}
		s.relay = r
		busOpts = append(busOpts, broadcast.WithRelay(r))
	}
	s.Bus = broadcast.New(busOpts...)
	if s.relay != nil {
		rctx, cancel := context.WithCancel(context.Background())
		s.relayCancel = cancel
		go s.relay.Run(rctx, s.Bus)
		logx.Infof("broadcast relay subscribed to %s as node %s", c.Relay.Topic, s.Bus.NodeID())
	}

	policy, err := rbac.NewPolicy()
	if err != nil {
		return nil, err
	}
	validator, err := validation.NewParams()
	if err != nil {
		return nil, err
	}
	users := usersgorm.New(gdb)
	s.Users = users
	s.Tokens = token.NewManager(c.Auth.JWTSecret)

	s.Lifecycle = lifecycle.New(lifecycle.Deps{
		Repo:      simulations.NewPortRepo(simulations.NewRepo(gdb)),
		Bus:       s.Bus,
		Policy:    policy,
		Validator: validator,
		Queue:     s.queue,
		Audit:     s.audit,
		Metrics:   tel.Metrics,
	}, engine.Config{Interval: c.Engine.Interval, Step: c.Engine.Step}, o.EngineOptions...)

	gen := o.Generator
	if gen == nil {
		gen = ai.NewOpenAI(c.AI)
	}
	s.Assist = assist.NewService(s.Lifecycle, users, aisessions.NewRepo(gdb), gen,
		ai.NewCatalog(c.AI.Model, c.AI.Engines), s.Bus, tel.Metrics)

	gw := o.Gateway
	if gw == nil {
		gw = payment.NewNOWPayments(c.Payment)
	}
	s.Billing = billing.NewService(payments.NewRepo(gdb), gw, s.Bus, s.queue, s.audit, tel.Metrics, c.Payment)

	s.Gateway = realtime.NewGateway(c.Realtime, s.Bus, s.Lifecycle, s.Tokens)
	s.Auth = middleware.NewAuthMiddleware(s.Tokens).Handle
	return s, nil
}

// Uptime reports how long the context has been alive.
func (s *ServiceContext) Uptime() time.Duration { return time.Since(s.startedAt) }

// Close stops the engine and releases every external resource.
func (s *ServiceContext) Close() {
	s.Lifecycle.Shutdown()
	if s.relayCancel != nil {
		s.relayCancel()
	}
	s.Bus.Close()
	if s.relay != nil {
		if err := s.relay.Close(); err != nil {
			logx.Errorf("close relay: %v", err)
		}
	}
	if err := s.queue.Close(); err != nil {
		logx.Errorf("close analytics queue: %v", err)
	}
	if err := s.audit.Close(); err != nil {
		logx.Errorf("close audit log: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Telemetry.Shutdown(ctx); err != nil {
		logx.Errorf("telemetry shutdown: %v", err)
	}
	if sqlDB, err := s.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
