// Package crud synthesizes the uniform list/get/create/update/delete surface
// from per-entity descriptors. Every endpoint consults the permission engine,
// reads through the cache, and invalidates tags on writes.
package crud

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"

	"github.com/codecampus/campus-core/internal/database"
	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/auth"
	"github.com/codecampus/campus-core/pkg/cache"
	"github.com/codecampus/campus-core/pkg/logger"
	"github.com/codecampus/campus-core/pkg/permissions"
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// EventPublisher receives entity lifecycle events for realtime fan-out.
// A nil publisher disables event emission.
type EventPublisher interface {
	PublishEntityEvent(ctx context.Context, resource, action, id string, payload any)
}

// Descriptor declares how one entity plugs into the dispatcher.
type Descriptor[T any, C any, U any] struct {
	// Resource is the permission resource name, also the URL path segment.
	Resource string

	// NewFromCreate builds a model from a validated create request.
	NewFromCreate func(ctx context.Context, p *rolemodel.Principal, req *C) (*T, error)
	// ApplyUpdate applies a partial update onto a loaded model.
	ApplyUpdate func(model *T, req *U) error
	// ToDTO projects a model into its response shape.
	ToDTO func(model *T) any
	// ID returns the primary key of a model.
	ID func(model *T) string

	// IDColumn is the column matched against the path id. Defaults to "id";
	// entities addressed by a natural key (users by username) override it.
	IDColumn string
	// FilterColumns maps allowed query parameters to column expressions.
	FilterColumns map[string]string
	// DefaultOrder is the stable sort applied to lists.
	DefaultOrder string
	// SoftDelete archives instead of deleting.
	SoftDelete bool
	// CacheTTL for single-entity reads; zero uses the cache default.
	CacheTTL time.Duration

	// GuardList may widen or reject a forbidden list filter, e.g. to grant
	// owner-scoped access. Optional.
	GuardList func(c echo.Context, p *rolemodel.Principal, f permissions.Filter) (permissions.Filter, error)
	// GuardCreate validates create permissions beyond the engine's resource
	// check, e.g. against the target course of the new entity. Optional.
	GuardCreate func(ctx context.Context, p *rolemodel.Principal, req *C) error
	// PostCreate hooks run after commit, before the response. A hook failure
	// is logged and does not undo the create.
	PostCreate []func(ctx context.Context, model *T) error
}

// Controller serves the five endpoints for one entity.
type Controller[T any, C any, U any] struct {
	db     bun.IDB
	engine *permissions.Engine
	cache  *cache.Cache
	events EventPublisher
	log    *slog.Logger
	desc   Descriptor[T, C, U]
}

// NewController creates a controller for the descriptor.
func NewController[T any, C any, U any](
	db bun.IDB,
	engine *permissions.Engine,
	c *cache.Cache,
	events EventPublisher,
	log *slog.Logger,
	desc Descriptor[T, C, U],
) *Controller[T, C, U] {
	if desc.IDColumn == "" {
		desc.IDColumn = "id"
	}
	return &Controller[T, C, U]{
		db:     db,
		engine: engine,
		cache:  c,
		events: events,
		log:    log.With(logger.Scope("crud." + desc.Resource)),
		desc:   desc,
	}
}

// Mount registers the five routes on the group.
func (ct *Controller[T, C, U]) Mount(g *echo.Group) {
	base := "/" + ct.desc.Resource
	g.GET(base, ct.List)
	g.POST(base, ct.Create)
	g.GET(base+"/:id", ct.Get)
	g.PATCH(base+"/:id", ct.Update)
	g.DELETE(base+"/:id", ct.Delete)
}

func (ct *Controller[T, C, U]) entityTag() string {
	return "entity:" + ct.desc.Resource
}

func (ct *Controller[T, C, U]) entityKey(id string) string {
	return fmt.Sprintf("crud:%s:%s", ct.desc.Resource, id)
}

// List returns a permission-filtered page and sets X-Total-Count.
func (ct *Controller[T, C, U]) List(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}

	f := ct.engine.FilterFor(c.Request().Context(), p, ct.desc.Resource, permissions.ActionList)
	if ct.desc.GuardList != nil {
		var err error
		f, err = ct.desc.GuardList(c, p, f)
		if err != nil {
			return err
		}
	}
	if f.Forbidden {
		return apperror.ErrForbidden
	}

	skip, limit, err := pageParams(c)
	if err != nil {
		return err
	}

	models := new([]T)
	q := ct.db.NewSelect().Model(models)
	q = f.Apply(q)
	q, err = ct.applyQueryFilters(c, q)
	if err != nil {
		return err
	}

	total, err := q.Count(c.Request().Context())
	if err != nil {
		return translateDBError(err)
	}

	if ct.desc.DefaultOrder != "" {
		q = q.OrderExpr(ct.desc.DefaultOrder)
	}
	if err := q.Offset(skip).Limit(limit).Scan(c.Request().Context()); err != nil {
		return translateDBError(err)
	}

	dtos := make([]any, 0, len(*models))
	for i := range *models {
		dtos = append(dtos, ct.desc.ToDTO(&(*models)[i]))
	}

	c.Response().Header().Set("X-Total-Count", strconv.Itoa(total))
	return c.JSON(http.StatusOK, dtos)
}

// Get serves a single entity through the cache. A forbidden but existing
// entity is indistinguishable from a missing one.
func (ct *Controller[T, C, U]) Get(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	id := c.Param("id")

	allowed, err := ct.engine.Permitted(c.Request().Context(), p, ct.desc.Resource, permissions.ActionGet, id)
	if err != nil {
		return err
	}
	if !allowed {
		return apperror.NewNotFound(ct.desc.Resource, id)
	}

	ctx := c.Request().Context()
	key := ct.entityKey(id)

	var dto any
	hit, err := ct.cache.Get(ctx, key, &dto)
	if err != nil {
		ct.log.Warn("cache read failed", logger.Error(err), slog.String("key", key))
	}
	if hit {
		c.Response().Header().Set("X-Cache", "hit")
	} else {
		model, err := ct.load(ctx, p, id)
		if err != nil {
			return err
		}
		dto = ct.desc.ToDTO(model)
		if err := ct.cache.Set(ctx, key, dto, ct.desc.CacheTTL, ct.entityTag()); err != nil {
			ct.log.Warn("cache write failed", logger.Error(err), slog.String("key", key))
		}
		c.Response().Header().Set("X-Cache", "miss")
	}

	return c.JSON(http.StatusOK, dto)
}

// Create validates, inserts, runs post-create hooks and emits the created
// event.
func (ct *Controller[T, C, U]) Create(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}

	req := new(C)
	if err := c.Bind(req); err != nil {
		return apperror.ErrBadRequest.WithInternal(err)
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	ctx := c.Request().Context()

	allowed, err := ct.engine.Permitted(ctx, p, ct.desc.Resource, permissions.ActionCreate, "")
	if err != nil {
		return err
	}
	if !allowed {
		return apperror.ErrForbidden
	}
	if ct.desc.GuardCreate != nil {
		if err := ct.desc.GuardCreate(ctx, p, req); err != nil {
			return err
		}
	}

	model, err := ct.desc.NewFromCreate(ctx, p, req)
	if err != nil {
		return err
	}

	err = database.RunInTx(ctx, ct.db, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(model).Exec(ctx)
		return err
	})
	if err != nil {
		return translateDBError(err)
	}

	for _, hook := range ct.desc.PostCreate {
		if err := hook(ctx, model); err != nil {
			ct.log.Error("post-create hook failed", logger.Error(err),
				slog.String("id", ct.desc.ID(model)))
		}
	}

	ct.invalidate(ctx, ct.desc.ID(model))
	ct.publish(ctx, "created", model)
	return c.JSON(http.StatusCreated, ct.desc.ToDTO(model))
}

// Update applies a partial update with optimistic version bumping.
func (ct *Controller[T, C, U]) Update(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	id := c.Param("id")

	allowed, err := ct.engine.Permitted(c.Request().Context(), p, ct.desc.Resource, permissions.ActionUpdate, id)
	if err != nil {
		return err
	}
	if !allowed {
		return apperror.NewNotFound(ct.desc.Resource, id)
	}

	req := new(U)
	if err := c.Bind(req); err != nil {
		return apperror.ErrBadRequest.WithInternal(err)
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	var model *T
	err = database.RunInTx(ctx, ct.db, func(ctx context.Context, tx bun.Tx) error {
		m := new(T)
		err := tx.NewSelect().Model(m).Where(ct.desc.IDColumn+" = ?", id).For("UPDATE").Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NewNotFound(ct.desc.Resource, id)
		}
		if err != nil {
			return err
		}
		if err := ct.desc.ApplyUpdate(m, req); err != nil {
			return err
		}
		_, err = tx.NewUpdate().Model(m).
			WherePK().
			Set("version = version + 1").
			Set("updated_at = now()").
			Exec(ctx)
		if err != nil {
			return err
		}
		model = m
		return nil
	})
	if err != nil {
		return translateDBError(err)
	}

	ct.invalidate(ctx, id)
	ct.publish(ctx, "updated", model)

	// Re-read so the response carries the bumped version and audit columns.
	fresh, err := ct.load(ctx, p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ct.desc.ToDTO(fresh))
}

// Delete archives soft-deletable entities and removes the rest.
func (ct *Controller[T, C, U]) Delete(c echo.Context) error {
	p := auth.GetPrincipal(c)
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	id := c.Param("id")

	ctx := c.Request().Context()
	allowed, err := ct.engine.Permitted(ctx, p, ct.desc.Resource, permissions.ActionDelete, id)
	if err != nil {
		return err
	}
	if !allowed {
		return apperror.NewNotFound(ct.desc.Resource, id)
	}

	err = database.RunInTx(ctx, ct.db, func(ctx context.Context, tx bun.Tx) error {
		var res sql.Result
		var err error
		if ct.desc.SoftDelete {
			res, err = tx.NewUpdate().
				Model((*T)(nil)).
				Set("archived_at = now()").
				Set("version = version + 1").
				Where(ct.desc.IDColumn+" = ?", id).
				Where("archived_at IS NULL").
				Exec(ctx)
		} else {
			res, err = tx.NewDelete().Model((*T)(nil)).Where(ct.desc.IDColumn+" = ?", id).Exec(ctx)
		}
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return apperror.NewNotFound(ct.desc.Resource, id)
		}
		return nil
	})
	if err != nil {
		return translateDBError(err)
	}

	ct.invalidate(ctx, id)
	ct.publish(ctx, "deleted", id)
	return c.NoContent(http.StatusNoContent)
}

// load fetches a model the principal is already known to reach.
func (ct *Controller[T, C, U]) load(ctx context.Context, p *rolemodel.Principal, id string) (*T, error) {
	model := new(T)
	q := ct.db.NewSelect().Model(model).Where(ct.desc.IDColumn+" = ?", id)
	f := ct.engine.FilterFor(ctx, p, ct.desc.Resource, permissions.ActionGet)
	q = f.Apply(q)
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound(ct.desc.Resource, id)
	}
	if err != nil {
		return nil, translateDBError(err)
	}
	return model, nil
}

// applyQueryFilters ANDs user-supplied filters into the query. Unknown
// parameters are ignored; the permission predicate is never weakened.
func (ct *Controller[T, C, U]) applyQueryFilters(c echo.Context, q *bun.SelectQuery) (*bun.SelectQuery, error) {
	for param, column := range ct.desc.FilterColumns {
		if v := c.QueryParam(param); v != "" {
			q = q.Where(column+" = ?", v)
		}
	}
	return q, nil
}

func (ct *Controller[T, C, U]) invalidate(ctx context.Context, id string) {
	if err := ct.cache.Delete(ctx, ct.entityKey(id)); err != nil {
		ct.log.Warn("cache invalidation failed", logger.Error(err), slog.String("id", id))
	}
	if err := ct.cache.InvalidateTag(ctx, ct.entityTag()); err != nil {
		ct.log.Warn("tag invalidation failed", logger.Error(err))
	}
}

func (ct *Controller[T, C, U]) publish(ctx context.Context, action string, payload any) {
	if ct.events == nil {
		return
	}
	id := ""
	if model, ok := payload.(*T); ok {
		id = ct.desc.ID(model)
		payload = ct.desc.ToDTO(model)
	} else if s, ok := payload.(string); ok {
		id = s
		payload = map[string]string{"id": s}
	}
	ct.events.PublishEntityEvent(ctx, ct.desc.Resource, action, id, payload)
}

// pageParams parses skip/limit with the platform defaults.
func pageParams(c echo.Context) (int, int, error) {
	skip := 0
	limit := defaultLimit
	if v := c.QueryParam("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, apperror.ErrBadRequest.WithMessage("skip must be a non-negative integer")
		}
		skip = n
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, 0, apperror.ErrBadRequest.WithMessage("limit must be a positive integer")
		}
		if n > maxLimit {
			n = maxLimit
		}
		limit = n
	}
	return skip, limit, nil
}

// translateDBError maps database failures onto the error taxonomy: unique
// violations to 409, busy/timeout to 503, the rest to 500.
func translateDBError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return apperror.ErrConflict.WithInternal(err)
		case "40001", "40P01", "55P03": // serialization, deadlock, lock_not_available
			return apperror.ErrServiceUnavailable.WithInternal(err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.ErrServiceUnavailable.WithInternal(err)
	}
	return apperror.ErrDatabase.WithInternal(err)
}
