package service

import (
	"context"
	"encoding/json"
	"skillcert_backend/internal/model"
	"skillcert_backend/pkg/logger"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StatusEvent is published whenever a submission's evaluation status changes.
type StatusEvent struct {
	SubmissionID     string                 `json:"submissionId"`
	UserID           uint                   `json:"userId"`
	EvaluationStatus model.EvaluationStatus `json:"evaluationStatus"`
	Passed           bool                   `json:"passed"`
	At               time.Time              `json:"at"`
}

type EvaluationNotifier interface {
	Publish(ctx context.Context, ev StatusEvent) error
	// Subscribe delivers events until ctx is done; the channel is closed afterwards.
	Subscribe(ctx context.Context) (<-chan StatusEvent, error)
}

// RedisNotifier fans events out to every API instance through a pub/sub channel.
type RedisNotifier struct {
	rdb     *redis.Client
	channel string
}

func NewRedisNotifier(rdb *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, channel: channel}
}

func (n *RedisNotifier) Publish(ctx context.Context, ev StatusEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, n.channel, payload).Err()
}

func (n *RedisNotifier) Subscribe(ctx context.Context) (<-chan StatusEvent, error) {
	sub := n.rdb.Subscribe(ctx, n.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	out := make(chan StatusEvent)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev StatusEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.Log.Warn("dropping malformed evaluation event", zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// LocalNotifier is the in-process notifier used without redis.
type LocalNotifier struct {
	mu   sync.Mutex
	subs map[chan StatusEvent]struct{}
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subs: make(map[chan StatusEvent]struct{})}
}

// Publish never blocks; slow subscribers miss events.
func (n *LocalNotifier) Publish(ctx context.Context, ev StatusEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

func (n *LocalNotifier) Subscribe(ctx context.Context) (<-chan StatusEvent, error) {
	ch := make(chan StatusEvent, 16)
	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.subs, ch)
		close(ch)
		n.mu.Unlock()
	}()
	return ch, nil
}

func publishStatus(ctx context.Context, n EvaluationNotifier, sub *model.TestSubmission, at time.Time) {
	if n == nil {
		return
	}
	ev := StatusEvent{
		SubmissionID:     sub.ID,
		UserID:           sub.UserID,
		EvaluationStatus: sub.EvaluationStatus,
		Passed:           sub.Passed,
		At:               at,
	}
	if err := n.Publish(ctx, ev); err != nil {
		logger.Log.Warn("publish evaluation event failed", zap.String("submissionId", sub.ID), zap.Error(err))
	}
}
