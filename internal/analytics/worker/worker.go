package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/zeromicro/go-zero/core/logx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Config controls the consumer group and the flush cadence.
type Config struct {
	RedisURL       string        `json:",default=redis://localhost:6379/0"`
	StreamEvents   string        `json:",default=nuwa:events"`
	StreamPayments string        `json:",default=nuwa:payments"`
	Group          string        `json:",default=nuwa-analytics"`
	Consumer       string        `json:",optional"`
	FlushInterval  time.Duration `json:",default=15s"`
	BatchSize      int64         `json:",default=200"`
}

// Counter is the distinct-count store behind active principal numbers.
// Redis HyperLogLog keeps it shared between workers.
type Counter interface {
	Add(ctx context.Context, key, member string) error
	Count(ctx context.Context, key string) (int64, error)
}

type hllCounter struct{ rdb *redis.Client }

func (c hllCounter) Add(ctx context.Context, key, member string) error {
	if err := c.rdb.PFAdd(ctx, key, member).Err(); err != nil {
		return err
	}
	return c.rdb.Expire(ctx, key, 30*24*time.Hour).Err()
}

func (c hllCounter) Count(ctx context.Context, key string) (int64, error) {
	return c.rdb.PFCount(ctx, key).Result()
}

// DailyActivity is one row per day and team.
type DailyActivity struct {
	Day              string `gorm:"primaryKey;size:10"`
	TeamID           string `gorm:"primaryKey;size:64"`
	Created          int64
	Started          int64
	Stopped          int64
	ActivePrincipals int64
	UpdatedAt        time.Time
}

func (DailyActivity) TableName() string { return "analytics_daily_activity" }

// DailyRevenue is one row per day, plan and currency.
type DailyRevenue struct {
	Day       string `gorm:"primaryKey;size:10"`
	Plan      string `gorm:"primaryKey;size:32"`
	Currency  string `gorm:"primaryKey;size:16"`
	Completed int64
	Failed    int64
	Amount    float64
	UpdatedAt time.Time
}

func (DailyRevenue) TableName() string { return "analytics_daily_revenue" }

// AutoMigrate creates the aggregate tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&DailyActivity{}, &DailyRevenue{})
}

type activityRow struct{ created, started, stopped int64 }

type revenueRow struct {
	completed, failed int64
	amount            float64
}

// Worker folds the analytics streams into daily aggregates.
type Worker struct {
	cfg     Config
	rdb     *redis.Client
	db      *gorm.DB
	counter Counter

	mu       sync.Mutex
	activity map[string]*activityRow
	revenue  map[string]*revenueRow
}

// NewWorker connects to redis and prepares the aggregate tables in db.
func NewWorker(c Config, db *gorm.DB) (*Worker, error) {
	opt, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	w, err := newWorker(c, db, hllCounter{rdb: rdb})
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}
	w.rdb = rdb
	return w, nil
}

func newWorker(c Config, db *gorm.DB, counter Counter) (*Worker, error) {
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate analytics tables: %w", err)
	}
	if c.Consumer == "" {
		host, _ := os.Hostname()
		c.Consumer = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 200
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 15 * time.Second
	}
	return &Worker{
		cfg:      c,
		db:       db,
		counter:  counter,
		activity: map[string]*activityRow{},
		revenue:  map[string]*revenueRow{},
	}, nil
}

func (w *Worker) ensureGroups(ctx context.Context) {
	for _, s := range []string{w.cfg.StreamEvents, w.cfg.StreamPayments} {
		err := w.rdb.XGroupCreateMkStream(ctx, s, w.cfg.Group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			logx.Errorf("[analytics-worker] create group %s on %s: %v", w.cfg.Group, s, err)
		}
	}
}

// Run reads both streams until ctx is cancelled, flushing on a timer and once more on exit.
func (w *Worker) Run(ctx context.Context) error {
	w.ensureGroups(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		tk := time.NewTicker(w.cfg.FlushInterval)
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				if err := w.Flush(ctx); err != nil {
					logx.Errorf("[analytics-worker] flush: %v", err)
				}
			}
		}
	}()

	for ctx.Err() == nil {
		res, err := w.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    w.cfg.Group,
			Consumer: w.cfg.Consumer,
			Streams:  []string{w.cfg.StreamEvents, w.cfg.StreamPayments, ">", ">"},
			Count:    w.cfg.BatchSize,
			Block:    2 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			logx.Errorf("[analytics-worker] xreadgroup: %v", err)
			time.Sleep(time.Second)
			continue
		}
		for _, str := range res {
			for _, msg := range str.Messages {
				w.Handle(ctx, str.Stream, fmtAny(msg.Values["data"]))
				if err := w.rdb.XAck(ctx, str.Stream, w.cfg.Group, msg.ID).Err(); err != nil {
					logx.Errorf("[analytics-worker] xack %s: %v", msg.ID, err)
				}
			}
		}
	}

	<-done
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return w.Flush(flushCtx)
}

// Close releases the redis connection.
func (w *Worker) Close() error {
	if w.rdb == nil {
		return nil
	}
	return w.rdb.Close()
}

// Handle folds one stream record into the pending aggregates. Malformed records are dropped.
func (w *Worker) Handle(ctx context.Context, stream, data string) {
	if data == "" {
		return
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		logx.Infof("[analytics-worker] drop malformed record on %s: %v", stream, err)
		return
	}
	switch stream {
	case w.cfg.StreamEvents:
		w.touchActivity(ctx, m)
	case w.cfg.StreamPayments:
		w.touchRevenue(m)
	}
}

func (w *Worker) touchActivity(ctx context.Context, m map[string]any) {
	day := dayOf(asString(m, "at"))
	team := asString(m, "teamId")
	key := day + "|" + team

	w.mu.Lock()
	row := w.activity[key]
	if row == nil {
		row = &activityRow{}
		w.activity[key] = row
	}
	switch asString(m, "type") {
	case "simulation.create":
		row.created++
	case "simulation.start":
		row.started++
	case "simulation.stop":
		row.stopped++
	}
	w.mu.Unlock()

	if actor := asString(m, "actor"); actor != "" {
		if err := w.counter.Add(ctx, activeKey(day, team), actor); err != nil {
			logx.Errorf("[analytics-worker] count actor: %v", err)
		}
	}
}

func (w *Worker) touchRevenue(m map[string]any) {
	status := asString(m, "status")
	if status != "completed" && status != "failed" {
		return
	}
	key := strings.Join([]string{dayOf(asString(m, "at")), asString(m, "plan"), asString(m, "currency")}, "|")

	w.mu.Lock()
	defer w.mu.Unlock()
	row := w.revenue[key]
	if row == nil {
		row = &revenueRow{}
		w.revenue[key] = row
	}
	if status == "completed" {
		row.completed++
		row.amount += asFloat(m, "amount")
	} else {
		row.failed++
	}
}

// Flush adds the pending deltas to the aggregate tables and resets them.
func (w *Worker) Flush(ctx context.Context) error {
	w.mu.Lock()
	activity, revenue := w.activity, w.revenue
	w.activity, w.revenue = map[string]*activityRow{}, map[string]*revenueRow{}
	w.mu.Unlock()

	now := time.Now().UTC()
	db := w.db.WithContext(ctx)
	for key, row := range activity {
		day, team, _ := strings.Cut(key, "|")
		active, err := w.counter.Count(ctx, activeKey(day, team))
		if err != nil {
			logx.Errorf("[analytics-worker] pfcount %s: %v", key, err)
		}
		rec := DailyActivity{Day: day, TeamID: team, Created: row.created, Started: row.started,
			Stopped: row.stopped, ActivePrincipals: active, UpdatedAt: now}
		err = db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "day"}, {Name: "team_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"created":           gorm.Expr("analytics_daily_activity.created + ?", row.created),
				"started":           gorm.Expr("analytics_daily_activity.started + ?", row.started),
				"stopped":           gorm.Expr("analytics_daily_activity.stopped + ?", row.stopped),
				"active_principals": active,
				"updated_at":        now,
			}),
		}).Create(&rec).Error
		if err != nil {
			return fmt.Errorf("upsert activity %s: %w", key, err)
		}
	}
	for key, row := range revenue {
		parts := strings.SplitN(key, "|", 3)
		rec := DailyRevenue{Day: parts[0], Plan: parts[1], Currency: parts[2], Completed: row.completed,
			Failed: row.failed, Amount: row.amount, UpdatedAt: now}
		err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "day"}, {Name: "plan"}, {Name: "currency"}},
			DoUpdates: clause.Assignments(map[string]any{
				"completed":  gorm.Expr("analytics_daily_revenue.completed + ?", row.completed),
				"failed":     gorm.Expr("analytics_daily_revenue.failed + ?", row.failed),
				"amount":     gorm.Expr("analytics_daily_revenue.amount + ?", row.amount),
				"updated_at": now,
			}),
		}).Create(&rec).Error
		if err != nil {
			return fmt.Errorf("upsert revenue %s: %w", key, err)
		}
	}
	return nil
}

func activeKey(day, team string) string {
	return fmt.Sprintf("hll:nuwa:active:%s:%s", team, day)
}

func dayOf(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if ts == "" || err != nil {
		t = time.Now()
	}
	return t.UTC().Format("2006-01-02")
}

func fmtAny(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(v)
	}
}

func asString(m map[string]any, k string) string {
	if s, ok := m[k].(string); ok {
		return s
	}
	return ""
}

func asFloat(m map[string]any, k string) float64 {
	switch t := m[k].(type) {
	case float64:
		return t
	case int:
		return float64(t)
	}
	return 0
}
