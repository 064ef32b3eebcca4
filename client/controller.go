package client

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"todoclient/auth"
	"todoclient/domain"
	"todoclient/subscription"
	"todoclient/viewmodel"
)

// Handle is the part of a live subscription the controller manages.
type Handle interface {
	Close()
}

// OpenFunc establishes a live task query for one owner. The default wires
// subscription.Open; tests substitute their own.
type OpenFunc func(ctx context.Context, ownerID string, onSnapshot func([]domain.Task), onError func(error)) (Handle, error)

// Config wires the controller into the rest of the app.
type Config struct {
	Writer  viewmodel.Writer
	Store   subscription.Fetcher
	Redis   *redis.Client
	Channel string
	Logger  *log.Logger

	// Open overrides how subscriptions are established. Nil means the
	// redis-backed default.
	Open OpenFunc

	// OnChange fires whenever the active view-model's visible state
	// changed. OnError receives subscription failures.
	OnChange func()
	OnError  func(error)
}

// Controller reacts to session changes: it keeps exactly one view-model
// and one live subscription around, both bound to the signed-in user, and
// tears them down before the next session takes over.
type Controller struct {
	cfg    Config
	open   OpenFunc
	logger *log.Logger

	mu  sync.Mutex
	vm  *viewmodel.ViewModel
	sub Handle
}

func NewController(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	c := &Controller{cfg: cfg, logger: logger}
	c.open = cfg.Open
	if c.open == nil {
		c.open = func(ctx context.Context, ownerID string, onSnapshot func([]domain.Task), onError func(error)) (Handle, error) {
			return subscription.Open(ctx, subscription.Config{
				Redis:      cfg.Redis,
				Channel:    cfg.Channel,
				OwnerID:    ownerID,
				Store:      cfg.Store,
				Logger:     logger,
				OnSnapshot: onSnapshot,
				OnError:    onError,
			})
		}
	}
	return c
}

// Bind attaches the controller to the session state. It fires immediately
// with the current session and then follows every change. The returned
// function detaches and tears down whatever is active.
func (c *Controller) Bind(ctx context.Context, sessions *auth.SessionState) func() {
	unsubscribe := sessions.Watch(func(sess *auth.Session) {
		c.HandleSession(ctx, sess)
	})
	return func() {
		unsubscribe()
		c.HandleSession(ctx, nil)
	}
}

// HandleSession switches the active user. The previous subscription and
// view-model are closed before anything new opens, so a late snapshot from
// the old subscription can never surface in the new session.
func (c *Controller) HandleSession(ctx context.Context, sess *auth.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub != nil {
		c.sub.Close()
		c.sub = nil
	}
	if c.vm != nil {
		c.vm.Close()
		c.vm = nil
	}
	if sess == nil {
		return
	}

	vm := viewmodel.New(sess.UserID, c.cfg.Writer, c.logger)
	vm.SetOnChange(c.cfg.OnChange)
	c.vm = vm

	sub, err := c.open(ctx, sess.UserID, vm.ApplySnapshot, c.reportError)
	if err != nil {
		c.logger.Errorf("open task subscription for %s: %v", sess.UserID, err)
		c.reportError(err)
		return
	}
	c.sub = sub
}

// ViewModel returns the active user's view-model, or nil when signed out.
func (c *Controller) ViewModel() *viewmodel.ViewModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vm
}

func (c *Controller) reportError(err error) {
	if c.cfg.OnError != nil {
		c.cfg.OnError(err)
	}
}
