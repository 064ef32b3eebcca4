package subscription

import (
	"context"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"todoclient/domain"
)

// Fetcher loads the current task list for an owner.
type Fetcher interface {
	FetchTasks(ctx context.Context, ownerID string) ([]domain.Task, error)
}

// Config wires one live task query.
type Config struct {
	Redis   *redis.Client
	Channel string
	OwnerID string
	Store   Fetcher
	Logger  *log.Logger

	// OnSnapshot receives the full task list: once right after Open, then
	// again after every change event for the owner. Calls come from a
	// single goroutine, in arrival order.
	OnSnapshot func([]domain.Task)

	// OnError receives a *domain.SubscriptionError when the channel is
	// interrupted (delivery ends) or a refetch fails (delivery continues).
	// There is no automatic retry; reopening is the caller's policy.
	OnError func(error)
}

// Subscription is a live view of one owner's task list. It stays open until
// Close is called or the parent context is cancelled.
type Subscription struct {
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Open establishes the subscription and starts delivery. It returns a
// *domain.SubscriptionError when the channel cannot be established.
func Open(ctx context.Context, cfg Config) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	sub := cfg.Redis.Subscribe(ctx, cfg.Channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		cancel()
		return nil, &domain.SubscriptionError{Reason: "establish", Err: err}
	}
	s := &Subscription{cancel: cancel, done: make(chan struct{})}
	go s.run(ctx, cfg, sub)
	return s, nil
}

// Close tears the subscription down. It is idempotent and fire-and-forget:
// it does not wait for an in-flight snapshot callback to return, but no new
// callback starts afterwards.
func (s *Subscription) Close() {
	s.closeOnce.Do(s.cancel)
}

// Done is closed when delivery has fully stopped.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) run(ctx context.Context, cfg Config, sub *redis.PubSub) {
	defer close(s.done)
	defer sub.Close()

	deliver := func() bool {
		tasks, err := cfg.Store.FetchTasks(ctx, cfg.OwnerID)
		if ctx.Err() != nil {
			return false
		}
		if err != nil {
			cfg.Logger.Errorf("fetch tasks: %v", err)
			if cfg.OnError != nil {
				cfg.OnError(&domain.SubscriptionError{Reason: "refresh", Err: err})
			}
			return true
		}
		cfg.OnSnapshot(tasks)
		return true
	}

	// Initial snapshot: subscribers see current data immediately, not only
	// after the first change.
	if !deliver() {
		return
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				if ctx.Err() == nil && cfg.OnError != nil {
					cfg.OnError(&domain.SubscriptionError{Reason: "interrupted"})
				}
				return
			}
			var ev domain.TaskChangedEvent
			if err := sonic.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				cfg.Logger.Errorf("unable to parse update: %v", err)
				continue
			}
			if ev.UserID != cfg.OwnerID {
				continue
			}
			if !deliver() {
				return
			}
		}
	}
}
