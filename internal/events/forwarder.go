package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openlearn/gradecore/internal/pkg/logger"
)

// Inbound signal names on the wire.
const (
	SignalScoreSet        = "score_set"
	SignalScoreReset      = "score_reset"
	SignalCoursePublished = "course_published"
	SignalCourseDeleted   = "course_deleted"
)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Forwarder subscribes to the inbound signal channel and dispatches each
// decoded signal on the bus. Handler errors are logged, not fatal: one bad
// signal never stops the stream.
type Forwarder struct {
	log     *logger.Logger
	rdb     *redis.Client
	channel string
	bus     *Bus
}

// NewRedisForwarder connects to REDIS_ADDR and listens on
// REDIS_SIGNALS_CHANNEL (default "grades:signals").
func NewRedisForwarder(bus *Bus, log *logger.Logger) (*Forwarder, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_SIGNALS_CHANNEL"))
	if ch == "" {
		ch = "grades:signals"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Forwarder{
		log:     log.With("service", "SignalForwarder"),
		rdb:     rdb,
		channel: ch,
		bus:     bus,
	}, nil
}

func (f *Forwarder) Start(ctx context.Context) error {
	sub := f.rdb.Subscribe(ctx, f.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				f.dispatch(ctx, []byte(m.Payload))
			}
		}
	}()
	return nil
}

func (f *Forwarder) dispatch(ctx context.Context, payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		f.log.Warn("bad signal payload", "error", err)
		return
	}

	var err error
	switch env.Type {
	case SignalScoreSet:
		var sig ScoreSet
		if err = json.Unmarshal(env.Data, &sig); err == nil {
			err = f.bus.EmitScoreSet(ctx, sig)
		}
	case SignalScoreReset:
		var sig ScoreReset
		if err = json.Unmarshal(env.Data, &sig); err == nil {
			err = f.bus.EmitScoreReset(ctx, sig)
		}
	case SignalCoursePublished:
		var sig CoursePublished
		if err = json.Unmarshal(env.Data, &sig); err == nil {
			err = f.bus.EmitCoursePublished(ctx, sig)
		}
	case SignalCourseDeleted:
		var sig CourseDeleted
		if err = json.Unmarshal(env.Data, &sig); err == nil {
			err = f.bus.EmitCourseDeleted(ctx, sig)
		}
	default:
		f.log.Warn("unknown signal type", "type", env.Type)
		return
	}
	if err != nil {
		f.log.Error("signal handling failed", "type", env.Type, "error", err)
	}
}

func (f *Forwarder) Close() error {
	return f.rdb.Close()
}
