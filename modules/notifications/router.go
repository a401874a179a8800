package notifications

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/notifyq/handler"
	"github.com/dmitrymomot/notifyq/pkg/binder"
	"github.com/dmitrymomot/notifyq/pkg/logger"
	"github.com/dmitrymomot/notifyq/pkg/notifyq"
)

// Queue is the part of notifyq.Queue exposed over HTTP.
type Queue interface {
	Enqueue(ctx context.Context, req notifyq.EnqueueRequest) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*notifyq.Record, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	GetStats(ctx context.Context, tenantID uuid.UUID) (*notifyq.Stats, error)
}

// EnqueueResponse is the body of a successful enqueue.
type EnqueueResponse struct {
	ID uuid.UUID `json:"id"`
}

type recordRequest struct {
	ID uuid.UUID `path:"id"`
}

type statsRequest struct {
	TenantID uuid.UUID `path:"tenantID"`
}

// Option configures the router.
type Option func(*config)

type config struct {
	logger       *slog.Logger
	maxBodyBytes int64
}

// WithLogger sets the logger used for request errors.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxBodySize limits enqueue request bodies. Default is 1MB.
func WithMaxBodySize(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

type service struct {
	queue Queue
}

// Router mounts the notification endpoints:
//
//	POST /notifications               enqueue, 201 with the new id
//	GET  /notifications/{id}          fetch a record
//	POST /notifications/{id}/cancel   cancel, 204
//	GET  /tenants/{tenantID}/stats    rolling-window stats
func Router(queue Queue, opts ...Option) chi.Router {
	cfg := &config{logger: slog.Default(), maxBodyBytes: binder.DefaultMaxJSONSize}
	for _, opt := range opts {
		opt(cfg)
	}
	s := &service{queue: queue}
	errorHandler := handler.NewErrorHandler(cfg.logger.With(logger.Component("notifications.api")), MapError)
	path := binder.Path(chi.URLParam)

	r := chi.NewRouter()
	r.Post("/notifications", handler.Wrap(s.enqueue,
		handler.WithBinders[notifyq.EnqueueRequest](binder.JSONWithLimit(cfg.maxBodyBytes)),
		handler.WithErrorHandler[notifyq.EnqueueRequest](errorHandler),
	))
	r.Get("/notifications/{id}", handler.Wrap(s.get,
		handler.WithBinders[recordRequest](path),
		handler.WithErrorHandler[recordRequest](errorHandler),
	))
	r.Post("/notifications/{id}/cancel", handler.Wrap(s.cancel,
		handler.WithBinders[recordRequest](path),
		handler.WithErrorHandler[recordRequest](errorHandler),
	))
	r.Get("/tenants/{tenantID}/stats", handler.Wrap(s.stats,
		handler.WithBinders[statsRequest](path),
		handler.WithErrorHandler[statsRequest](errorHandler),
	))
	return r
}

func (s *service) enqueue(ctx handler.Context, req notifyq.EnqueueRequest) handler.Response {
	id, err := s.queue.Enqueue(ctx, req)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(EnqueueResponse{ID: id}, handler.WithJSONStatus(http.StatusCreated))
}

func (s *service) get(ctx handler.Context, req recordRequest) handler.Response {
	rec, err := s.queue.Get(ctx, req.ID)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(rec)
}

func (s *service) cancel(ctx handler.Context, req recordRequest) handler.Response {
	if err := s.queue.Cancel(ctx, req.ID); err != nil {
		return handler.Error(err)
	}
	return handler.Empty()
}

func (s *service) stats(ctx handler.Context, req statsRequest) handler.Response {
	stats, err := s.queue.GetStats(ctx, req.TenantID)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(stats)
}
