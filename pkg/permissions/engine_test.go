package permissions

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecampus/campus-core/pkg/cache"
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

// The engine here carries a nil database and cache: every case in the table
// must be decided before either is consulted.
func TestPermittedShortCircuits(t *testing.T) {
	e := NewEngine(nil, nil, slog.Default(), DefaultRules())
	ctx := context.Background()

	admin := rolemodel.NewPrincipal("admin-1")
	admin.IsAdmin = true

	claimed := rolemodel.NewPrincipal("svc-1")
	claimed.GeneralClaims[rolemodel.Claim{Resource: "users", Action: ActionList}] = struct{}{}

	tests := []struct {
		name      string
		principal *rolemodel.Principal
		resource  string
		action    string
		id        string
		want      bool
	}{
		{name: "anonymous", principal: nil, resource: "courses", action: ActionList, want: false},
		{name: "admin bypasses rules", principal: admin, resource: "users", action: ActionDelete, id: "u1", want: true},
		{name: "claim covers unruled resource", principal: claimed, resource: "users", action: ActionList, want: true},
		{name: "unruled resource denied", principal: tutorIn("c1"), resource: "users", action: ActionList, want: false},
		{name: "action absent from rule", principal: tutorIn("c1"), resource: "artifacts", action: ActionDelete, want: false},
		{name: "student below artifact floor", principal: studentIn("c1"), resource: "artifacts", action: ActionGet, id: "a1", want: false},
		{name: "no memberships", principal: rolemodel.NewPrincipal("user-9"), resource: "courses", action: ActionGet, id: "c1", want: false},
		{name: "collection scope without id", principal: tutorIn("c1"), resource: "artifacts", action: ActionList, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := e.Permitted(ctx, tt.principal, tt.resource, tt.action, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestPermittedOwnerReach(t *testing.T) {
	rules := []Rule{{
		Resource: "sessions",
		Table:    "sessions",
		Reach:    ReachOwner,
		MinRole:  map[string]rolemodel.CourseRole{ActionList: rolemodel.RoleStudent},
	}}
	e := NewEngine(nil, nil, slog.Default(), rules)

	// Owner-reachable rows are narrowed per query, so the scalar answer is
	// yes even without course memberships.
	ok, err := e.Permitted(context.Background(), rolemodel.NewPrincipal("user-1"), "sessions", ActionList, "s1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func newCachedEngine(t *testing.T) (*Engine, *cache.Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	c := cache.New(rdb, slog.Default())
	return NewEngine(nil, c, slog.Default(), DefaultRules()), c
}

func TestPermittedServesCachedDecision(t *testing.T) {
	e, c := newCachedEngine(t)
	ctx := context.Background()

	// A cached decision must be served without a database round trip; the
	// engine's nil db would panic on any reachability query.
	require.NoError(t, c.Set(ctx, "perm:dec:user-1:artifacts:get:ent-1", true, time.Minute, "perm:user:user-1"))
	ok, err := e.Permitted(ctx, tutorIn("c1"), "artifacts", ActionGet, "ent-1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Set(ctx, "perm:dec:user-1:artifacts:get:ent-2", false, time.Minute, "perm:user:user-1"))
	ok, err = e.Permitted(ctx, tutorIn("c1"), "artifacts", ActionGet, "ent-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidateUserDropsDecisions(t *testing.T) {
	e, c := newCachedEngine(t)
	ctx := context.Background()

	key := "perm:dec:user-1:artifacts:get:ent-1"
	require.NoError(t, c.Set(ctx, key, true, time.Minute, "perm:user:user-1"))

	var cached bool
	hit, err := c.Get(ctx, key, &cached)
	require.NoError(t, err)
	require.True(t, hit)

	e.InvalidateUser(ctx, "user-1")

	hit, err = c.Get(ctx, key, &cached)
	require.NoError(t, err)
	assert.False(t, hit)
}

// Submission-side resources stay tutor-gated for reads so student access only
// flows through the group-scoped endpoints.
func TestDefaultRulesGateSubmissionReads(t *testing.T) {
	e := NewEngine(nil, nil, slog.Default(), DefaultRules())
	for _, resource := range []string{"submission-groups", "artifacts", "results", "grades", "reviews"} {
		rule, ok := e.rules[resource]
		require.True(t, ok, resource)
		for _, action := range []string{ActionList, ActionGet} {
			assert.True(t, rule.MinRole[action].AtLeast(rolemodel.RoleTutor), "%s %s", resource, action)
		}
	}
}
