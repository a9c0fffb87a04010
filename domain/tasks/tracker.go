package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/codecampus/campus-core/pkg/logger"
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

// trackerTTL bounds how long a submitted workflow stays listable. The
// durable row in PostgreSQL outlives the tracker entry.
const trackerTTL = 24 * time.Hour

const (
	entryKeyPrefix = "task:"
	idxUserPrefix  = "task_idx:user:"
	idxCoursePref  = "task_idx:course:"
	idxOrgPrefix   = "task_idx:org:"
	idxAllKey      = "task_idx:all"
)

// Tracker keeps a permission-tagged index of submitted workflows in Redis.
// Entries expire after trackerTTL; index sets are pruned opportunistically
// when a listed id no longer resolves.
type Tracker struct {
	rdb *redis.Client
	log *slog.Logger
}

// NewTracker creates the task tracker.
func NewTracker(rdb *redis.Client, log *slog.Logger) *Tracker {
	return &Tracker{
		rdb: rdb,
		log: log.With(logger.Scope("tasks.tracker")),
	}
}

// Track writes the entry and every index it belongs to in one pipelined
// batch, so a crash never leaves an id listed without its entry for longer
// than the TTL.
func (t *Tracker) Track(ctx context.Context, entry *TrackerEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	pipe := t.rdb.TxPipeline()
	pipe.Set(ctx, entryKeyPrefix+entry.WorkflowID, data, trackerTTL)

	indexes := []string{idxAllKey, idxUserPrefix + entry.UserID}
	if entry.CourseID != nil {
		indexes = append(indexes, idxCoursePref+*entry.CourseID)
	}
	if entry.OrganizationID != nil {
		indexes = append(indexes, idxOrgPrefix+*entry.OrganizationID)
	}
	for _, idx := range indexes {
		pipe.SAdd(ctx, idx, entry.WorkflowID)
		pipe.Expire(ctx, idx, trackerTTL)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// Get returns the tracker entry for a workflow id, or nil after expiry.
func (t *Tracker) Get(ctx context.Context, workflowID string) (*TrackerEntry, error) {
	data, err := t.rdb.Get(ctx, entryKeyPrefix+workflowID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entry := new(TrackerEntry)
	if err := json.Unmarshal(data, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// CanAccess reports whether the principal may see the workflow: admins see
// everything, owners see their own, lecturers see their course's.
func (t *Tracker) CanAccess(ctx context.Context, p *rolemodel.Principal, workflowID string) (bool, *TrackerEntry, error) {
	entry, err := t.Get(ctx, workflowID)
	if err != nil {
		return false, nil, err
	}
	if entry == nil {
		return false, nil, nil
	}
	if p.IsAdmin {
		return true, entry, nil
	}
	if entry.UserID == p.UserID {
		return true, entry, nil
	}
	if entry.CourseID != nil && p.HasCourseRole(*entry.CourseID, rolemodel.RoleLecturer) {
		return true, entry, nil
	}
	return false, nil, nil
}

// ListAccessible returns the entries visible to the principal, newest first.
// Admins read the global index; everyone else gets the union of their own
// submissions and the indexes of courses where they hold at least lecturer.
func (t *Tracker) ListAccessible(ctx context.Context, p *rolemodel.Principal, limit, offset int) ([]TrackerEntry, int, error) {
	var keys []string
	if p.IsAdmin {
		keys = []string{idxAllKey}
	} else {
		keys = []string{idxUserPrefix + p.UserID}
		for _, courseID := range p.CoursesWithRole(rolemodel.RoleLecturer) {
			keys = append(keys, idxCoursePref+courseID)
		}
	}

	ids, err := t.rdb.SUnion(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return []TrackerEntry{}, 0, nil
	}

	entryKeys := make([]string, 0, len(ids))
	for _, id := range ids {
		entryKeys = append(entryKeys, entryKeyPrefix+id)
	}
	values, err := t.rdb.MGet(ctx, entryKeys...).Result()
	if err != nil {
		return nil, 0, err
	}

	entries := make([]TrackerEntry, 0, len(values))
	var stale []string
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Entry expired before its index; drop the dangling id.
			stale = append(stale, ids[i])
			continue
		}
		var entry TrackerEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			t.log.Warn("corrupt tracker entry", logger.Error(err), slog.String("workflow_id", ids[i]))
			continue
		}
		entries = append(entries, entry)
	}
	if len(stale) > 0 {
		t.prune(ctx, keys, stale)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	total := len(entries)
	if offset >= total {
		return []TrackerEntry{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return entries[offset:end], total, nil
}

func (t *Tracker) prune(ctx context.Context, indexKeys, ids []string) {
	members := make([]any, 0, len(ids))
	for _, id := range ids {
		members = append(members, id)
	}
	pipe := t.rdb.TxPipeline()
	for _, idx := range indexKeys {
		pipe.SRem(ctx, idx, members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		t.log.Warn("index prune failed", logger.Error(err))
	}
}
