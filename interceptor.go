package fieldvault

import (
	"context"
	"log/slog"

	"github.com/hengadev/fieldvault/internal/fverr"
	"github.com/hengadev/fieldvault/internal/schema"
	"github.com/hengadev/fieldvault/internal/traverse"
)

// Interceptor runs schema-driven encryption around document conversion:
// OnBeforeSave before an entity is persisted, OnAfterLoad after one is read
// back. Database integrations call these from their conversion hooks; see the
// mongostore package for a ready-made MongoDB wrapper.
//
// An Interceptor is safe for concurrent use across independent documents.
// Each callback must own its entity exclusively: values are mutated in place.
type Interceptor struct {
	registry *schema.Registry
	engine   *traverse.Engine
	enabled  bool
	logger   *slog.Logger
}

// InterceptorOption configures an Interceptor.
type InterceptorOption func(*Interceptor)

// WithInterceptorLogger sets the logger. Defaults to slog.Default().
func WithInterceptorLogger(logger *slog.Logger) InterceptorOption {
	return func(i *Interceptor) { i.logger = logger }
}

// NewInterceptor wires the traversal engine to a transit orchestrator and a
// schema registry. When enabled is false, both callbacks return their input
// untouched.
func NewInterceptor(transit *Transit, registry *schema.Registry, enabled bool, opts ...InterceptorOption) *Interceptor {
	i := &Interceptor{
		registry: registry,
		enabled:  enabled,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.engine = traverse.New(transit, i.logger)
	return i
}

// OnBeforeSave encrypts every schema-declared leaf of entity, in place.
// Struct entities must be passed by pointer. An error aborts the whole
// document; the caller decides whether to fail the write or tolerate the
// partially processed entity.
func (i *Interceptor) OnBeforeSave(ctx context.Context, entity any, collection string) error {
	return i.process(ctx, entity, collection, fverr.Encrypt)
}

// OnAfterLoad decrypts every schema-declared leaf of entity, in place.
func (i *Interceptor) OnAfterLoad(ctx context.Context, entity any, collection string) error {
	return i.process(ctx, entity, collection, fverr.Decrypt)
}

func (i *Interceptor) process(ctx context.Context, entity any, collection string, action fverr.Action) error {
	if !i.enabled || i.registry == nil {
		return nil
	}
	sch := i.registry.ForCollection(collection)
	if sch == nil || len(sch.Encrypt) == 0 {
		return nil
	}
	i.logger.Info("starting field processing", "collection", collection, "action", action.String())
	if err := i.engine.ProcessDocument(ctx, entity, collection, sch, action); err != nil {
		i.logger.Error("field processing failed", "collection", collection, "action", action.String(), "error", err)
		return err
	}
	i.logger.Info("completed field processing", "collection", collection, "action", action.String())
	return nil
}
