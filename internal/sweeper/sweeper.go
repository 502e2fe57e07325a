package sweeper

import (
	"context"
	"log/slog"
	"time"
)

// Engine is the slice of the collaboration engine the sweeper drives.
type Engine interface {
	ReapIdleRooms(ctx context.Context, maxAge time.Duration) int
	DecayPresence(awayAfter, offlineAfter time.Duration) int
	PublishStats(ctx context.Context)
}

type Config struct {
	RoomInterval     time.Duration
	PresenceInterval time.Duration
	StatsInterval    time.Duration

	MaxRoomAge   time.Duration
	AwayAfter    time.Duration
	OfflineAfter time.Duration
}

func DefaultConfig() Config {
	return Config{
		RoomInterval:     time.Minute,
		PresenceInterval: 30 * time.Second,
		StatsInterval:    15 * time.Second,
		MaxRoomAge:       4 * time.Hour,
		AwayAfter:        5 * time.Minute,
		OfflineAfter:     30 * time.Minute,
	}
}

// Sweeper runs the three lifecycle loops: room reaping, presence decay
// and stats recomputation. Each loop is supervised independently so a
// panic in one cannot take down the others, and all of them stop on
// context cancellation.
type Sweeper struct {
	cfg    Config
	engine Engine
}

func New(cfg Config, engine Engine) *Sweeper {
	return &Sweeper{cfg: cfg, engine: engine}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	done := make(chan struct{}, 3)

	go s.loop(ctx, "rooms", s.cfg.RoomInterval, done, func(ctx context.Context) {
		if n := s.engine.ReapIdleRooms(ctx, s.cfg.MaxRoomAge); n > 0 {
			slog.Info("swept idle rooms", "count", n)
		}
	})
	go s.loop(ctx, "presence", s.cfg.PresenceInterval, done, func(ctx context.Context) {
		if n := s.engine.DecayPresence(s.cfg.AwayAfter, s.cfg.OfflineAfter); n > 0 {
			slog.Debug("demoted stale presence", "count", n)
		}
	})
	go s.loop(ctx, "stats", s.cfg.StatsInterval, done, func(ctx context.Context) {
		s.engine.PublishStats(ctx)
	})

	for i := 0; i < 3; i++ {
		<-done
	}
}

func (s *Sweeper) loop(ctx context.Context, name string, interval time.Duration, done chan<- struct{}, fn func(context.Context)) {
	defer func() { done <- struct{}{} }()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sweeper loop stopped", "loop", name)
			return
		case <-ticker.C:
			s.tick(ctx, name, fn)
		}
	}
}

// tick isolates one iteration so a panicking sweep is logged and the
// loop keeps running.
func (s *Sweeper) tick(ctx context.Context, name string, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("sweeper loop panic", "loop", name, "panic", r)
		}
	}()
	fn(ctx)
}
