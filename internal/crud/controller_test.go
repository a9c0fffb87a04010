package crud

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecampus/campus-core/internal/server"
	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/auth"
	"github.com/codecampus/campus-core/pkg/permissions"
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

type widget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type widgetCreate struct {
	Name string `json:"name" validate:"required"`
}

type widgetUpdate struct {
	Name *string `json:"name"`
}

// The descriptor binds to the artifacts resource: DefaultRules gate its reads
// at tutor and grant no create/update/delete at all, which reaches every
// refusal branch without a database.
func widgetDescriptor() Descriptor[widget, widgetCreate, widgetUpdate] {
	return Descriptor[widget, widgetCreate, widgetUpdate]{
		Resource: "artifacts",
		NewFromCreate: func(_ context.Context, _ *rolemodel.Principal, req *widgetCreate) (*widget, error) {
			return &widget{ID: "w1", Name: req.Name}, nil
		},
		ApplyUpdate: func(m *widget, req *widgetUpdate) error {
			if req.Name != nil {
				m.Name = *req.Name
			}
			return nil
		},
		ToDTO: func(m *widget) any { return m },
		ID:    func(m *widget) string { return m.ID },
	}
}

// newTestController wires the descriptor against a nil database and cache.
// Every path under test must decide before either is touched.
func newTestController(t *testing.T) *Controller[widget, widgetCreate, widgetUpdate] {
	t.Helper()
	engine := permissions.NewEngine(nil, nil, slog.Default(), permissions.DefaultRules())
	return NewController(nil, engine, nil, nil, slog.Default(), widgetDescriptor())
}

func request(t *testing.T, method, target, body string, p *rolemodel.Principal) echo.Context {
	t.Helper()
	e := echo.New()
	e.Validator = server.NewValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	c := e.NewContext(req, httptest.NewRecorder())
	if p != nil {
		auth.SetPrincipal(c, p)
	}
	return c
}

func withID(c echo.Context, id string) echo.Context {
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c
}

func student(courseID string) *rolemodel.Principal {
	p := rolemodel.NewPrincipal("user-1")
	p.CourseRoles[courseID] = rolemodel.RoleStudent
	return p
}

func tutor(courseID string) *rolemodel.Principal {
	p := rolemodel.NewPrincipal("user-1")
	p.CourseRoles[courseID] = rolemodel.RoleTutor
	return p
}

func TestEndpointsRequirePrincipal(t *testing.T) {
	ct := newTestController(t)
	tests := []struct {
		name string
		call func(echo.Context) error
	}{
		{name: "list", call: ct.List},
		{name: "get", call: ct.Get},
		{name: "create", call: ct.Create},
		{name: "update", call: ct.Update},
		{name: "delete", call: ct.Delete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := request(t, http.MethodGet, "/artifacts", "", nil)
			assert.ErrorIs(t, tt.call(c), apperror.ErrMissingCredentials)
		})
	}
}

// A forbidden list is an explicit 403; forbidden single-entity access reads
// as 404 so existence never leaks.
func TestListForbiddenIsExplicit(t *testing.T) {
	ct := newTestController(t)
	c := request(t, http.MethodGet, "/artifacts", "", student("c1"))
	assert.ErrorIs(t, ct.List(c), apperror.ErrForbidden)
}

func TestSingleEntityForbiddenReadsAsMissing(t *testing.T) {
	ct := newTestController(t)
	tests := []struct {
		name string
		call func(echo.Context) error
	}{
		{name: "get", call: ct.Get},
		{name: "update", call: ct.Update},
		{name: "delete", call: ct.Delete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := withID(request(t, http.MethodGet, "/artifacts/a1", "", student("c1")), "a1")
			err := tt.call(c)
			var appErr *apperror.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, "NF_001", appErr.Code)
			assert.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
		})
	}
}

func TestCreateForbiddenIsExplicit(t *testing.T) {
	// DefaultRules grant no create on artifacts, so even a tutor is refused.
	ct := newTestController(t)
	c := request(t, http.MethodPost, "/artifacts", `{"name":"box"}`, tutor("c1"))
	assert.ErrorIs(t, ct.Create(c), apperror.ErrForbidden)
}

func TestCreateValidatesBeforePermissions(t *testing.T) {
	ct := newTestController(t)
	c := request(t, http.MethodPost, "/artifacts", `{}`, tutor("c1"))
	err := ct.Create(c)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VAL_001", appErr.Code)
	require.Len(t, appErr.Details, 1)
	assert.Equal(t, "Name", appErr.Details[0].Field)
}

func TestGuardListRejectionPropagates(t *testing.T) {
	desc := widgetDescriptor()
	rejection := apperror.NewForbidden("cross-course listing disabled")
	desc.GuardList = func(echo.Context, *rolemodel.Principal, permissions.Filter) (permissions.Filter, error) {
		return permissions.Filter{}, rejection
	}
	engine := permissions.NewEngine(nil, nil, slog.Default(), permissions.DefaultRules())
	ct := NewController(nil, engine, nil, nil, slog.Default(), desc)

	// The guard is consulted even when the engine grants unrestricted access.
	admin := rolemodel.NewPrincipal("admin-1")
	admin.IsAdmin = true
	c := request(t, http.MethodGet, "/artifacts", "", admin)
	assert.Same(t, rejection, ct.List(c))
}

func TestNewControllerDefaultsIDColumn(t *testing.T) {
	ct := newTestController(t)
	assert.Equal(t, "id", ct.desc.IDColumn)
}

type captureEvents struct {
	resource string
	action   string
	id       string
	payload  any
}

func (e *captureEvents) PublishEntityEvent(_ context.Context, resource, action, id string, payload any) {
	e.resource, e.action, e.id, e.payload = resource, action, id, payload
}

func TestPublishShapesPayload(t *testing.T) {
	events := &captureEvents{}
	engine := permissions.NewEngine(nil, nil, slog.Default(), permissions.DefaultRules())
	ct := NewController(nil, engine, nil, events, slog.Default(), widgetDescriptor())
	ctx := context.Background()

	ct.publish(ctx, "created", &widget{ID: "w1", Name: "box"})
	assert.Equal(t, "artifacts", events.resource)
	assert.Equal(t, "created", events.action)
	assert.Equal(t, "w1", events.id)
	assert.Equal(t, &widget{ID: "w1", Name: "box"}, events.payload)

	ct.publish(ctx, "deleted", "w2")
	assert.Equal(t, "deleted", events.action)
	assert.Equal(t, "w2", events.id)
	assert.Equal(t, map[string]string{"id": "w2"}, events.payload)
}
