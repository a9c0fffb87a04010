// Package messages implements the target-polymorphic discussion entity:
// scope-specific write rules, soft delete with an audit trail, and per-viewer
// read receipts.
package messages

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/codecampus/campus-core/domain/courses"
	"github.com/codecampus/campus-core/internal/database"
	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/logger"
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

// Broadcaster fans events out to realtime subscribers. A nil broadcaster
// disables fan-out.
type Broadcaster interface {
	Broadcast(ctx context.Context, channel, event string, payload any)
}

// Service implements the message operations.
type Service struct {
	db      bun.IDB
	courses *courses.Service
	bus     Broadcaster
	log     *slog.Logger
}

// NewService creates the messages service.
func NewService(db bun.IDB, coursesSvc *courses.Service, bus Broadcaster, log *slog.Logger) *Service {
	return &Service{
		db:      db,
		courses: coursesSvc,
		bus:     bus,
		log:     log.With(logger.Scope("messages.svc")),
	}
}

// messageRow carries the per-viewer read flag next to the message columns.
type messageRow struct {
	Message
	IsRead bool `bun:"is_read,scanonly"`
}

// Create validates the target, applies the scope write rules and inserts the
// message together with its audit entry. Replies inherit their parent's
// target.
func (s *Service) Create(ctx context.Context, p *rolemodel.Principal, req *CreateMessageRequest) (*MessageDTO, error) {
	target, err := DeriveTarget(req, p.UserID)
	if err != nil {
		return nil, err
	}
	defaulted := len(targetOf(req)) == 0

	level := 0
	if req.ParentID != nil {
		parent, err := s.findVisible(ctx, p, *req.ParentID)
		if err != nil {
			return nil, err
		}
		parentTarget := TargetOfMessage(&parent.Message)
		if !defaulted && target != parentTarget {
			return nil, apperror.NewValidation(apperror.FieldError{
				Field:   "target",
				Message: "reply target must match the parent's target",
				Type:    "inherited",
			})
		}
		target = parentTarget
		level = parent.Level + 1
	} else if err := s.checkWriteRule(ctx, p, target, defaulted); err != nil {
		return nil, err
	}

	props := req.Properties
	if len(props) == 0 {
		props = json.RawMessage("{}")
	}
	msg := &Message{
		AuthorID:   p.UserID,
		ParentID:   req.ParentID,
		Level:      level,
		Title:      req.Title,
		Content:    req.Content,
		Properties: props,
		CreatedBy:  &p.UserID,
	}
	applyTarget(msg, target)

	err = database.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(msg).Exec(ctx); err != nil {
			return err
		}
		audit := &MessageAuditLog{
			MessageID:  msg.ID,
			UserID:     p.UserID,
			Action:     AuditCreated,
			NewTitle:   &msg.Title,
			NewContent: &msg.Content,
		}
		_, err := tx.NewInsert().Model(audit).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	dto := &MessageDTO{Message: msg}
	s.broadcast(ctx, target, "message:new", dto)
	return dto, nil
}

// Update applies an author-only partial update and records old and new
// values of the fields that actually changed.
func (s *Service) Update(ctx context.Context, p *rolemodel.Principal, id string, req *UpdateMessageRequest) (*MessageDTO, error) {
	row, err := s.findVisible(ctx, p, id)
	if err != nil {
		return nil, err
	}
	msg := &row.Message
	if msg.Deleted() {
		return nil, apperror.NewConflict("CONF_001", "Deleted messages cannot be updated")
	}
	if msg.AuthorID != p.UserID {
		return nil, apperror.ErrForbidden.WithMessage("Only the author may update a message")
	}

	audit := &MessageAuditLog{MessageID: msg.ID, UserID: p.UserID, Action: AuditUpdated}
	changed := false
	if req.Title != nil && *req.Title != msg.Title {
		old := msg.Title
		audit.OldTitle, audit.NewTitle = &old, req.Title
		msg.Title = *req.Title
		changed = true
	}
	if req.Content != nil && *req.Content != msg.Content {
		old := msg.Content
		audit.OldContent, audit.NewContent = &old, req.Content
		msg.Content = *req.Content
		changed = true
	}
	if !changed {
		return &MessageDTO{Message: msg, IsRead: row.IsRead}, nil
	}

	err = database.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().Model(msg).
			WherePK().
			Column("title", "content").
			Set("version = version + 1").
			Set("updated_at = now()").
			Set("updated_by = ?", p.UserID).
			Exec(ctx)
		if err != nil {
			return err
		}
		_, err = tx.NewInsert().Model(audit).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	dto := &MessageDTO{Message: msg, IsRead: row.IsRead}
	s.broadcast(ctx, TargetOfMessage(msg), "message:update", dto)
	return dto, nil
}

// Delete tombstones a message: the original title and content move into the
// audit log, deletion metadata lands in properties, and the row stays
// visible as a stub.
func (s *Service) Delete(ctx context.Context, p *rolemodel.Principal, id string, req *DeleteMessageRequest) error {
	row, err := s.findVisible(ctx, p, id)
	if err != nil {
		return err
	}
	msg := &row.Message
	if msg.Deleted() {
		return apperror.NewConflict("CONF_001", "Message has already been deleted")
	}

	deleterKind := "author"
	if msg.AuthorID != p.UserID {
		if !s.mayModerate(ctx, p, msg) {
			return apperror.ErrForbidden.WithMessage("Only the author or course staff may delete a message")
		}
		deleterKind = "staff"
	}

	var reason *string
	if req != nil {
		reason = req.Reason
	}
	propsJSON, err := tombstoneProps(msg.Properties, reason, deleterKind)
	if err != nil {
		return apperror.ErrInternal.WithInternal(err)
	}

	audit := &MessageAuditLog{
		MessageID:  msg.ID,
		UserID:     p.UserID,
		Action:     AuditDeleted,
		OldTitle:   &msg.Title,
		OldContent: &msg.Content,
	}

	err = database.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().Model((*Message)(nil)).
			Where("id = ?", msg.ID).
			Where("archived_at IS NULL").
			Set("title = ?", Tombstone).
			Set("content = ?", Tombstone).
			Set("properties = ?", propsJSON).
			Set("archived_at = now()").
			Set("updated_at = now()").
			Set("updated_by = ?", p.UserID).
			Set("version = version + 1").
			Exec(ctx)
		if err != nil {
			return err
		}
		_, err = tx.NewInsert().Model(audit).Exec(ctx)
		return err
	})
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}

	s.broadcast(ctx, TargetOfMessage(msg), "message:delete", map[string]string{"id": msg.ID})
	return nil
}

// Get returns a visible message with the viewer's read flag.
func (s *Service) Get(ctx context.Context, p *rolemodel.Principal, id string) (*MessageDTO, error) {
	row, err := s.findVisible(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return &MessageDTO{Message: &row.Message, IsRead: row.IsRead}, nil
}

// ListFilter narrows a message listing. Zero values mean no constraint.
type ListFilter struct {
	Scope             string
	UserID            string
	CourseMemberID    string
	SubmissionGroupID string
	CourseGroupID     string
	CourseContentID   string
	CourseID          string
	ParentID          string
	Tags              []string
	MatchAll          bool
	Skip              int
	Limit             int
}

// List returns the messages visible to the principal, newest first, with
// per-viewer read flags. Soft-deleted messages stay listed as tombstones.
func (s *Service) List(ctx context.Context, p *rolemodel.Principal, f ListFilter) ([]MessageDTO, int, error) {
	rows := new([]messageRow)
	q := s.baseQuery(p).Model(rows)

	eq := map[string]string{
		"m.scope":               f.Scope,
		"m.user_id":             f.UserID,
		"m.course_member_id":    f.CourseMemberID,
		"m.submission_group_id": f.SubmissionGroupID,
		"m.course_group_id":     f.CourseGroupID,
		"m.course_content_id":   f.CourseContentID,
		"m.course_id":           f.CourseID,
		"m.parent_id":           f.ParentID,
	}
	for col, v := range eq {
		if v != "" {
			q = q.Where(col+" = ?", v)
		}
	}

	if len(f.Tags) > 0 {
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			for _, tag := range f.Tags {
				pattern := TagPattern(tag)
				if f.MatchAll {
					q = q.Where(`m.title LIKE ? ESCAPE '\'`, pattern)
				} else {
					q = q.WhereOr(`m.title LIKE ? ESCAPE '\'`, pattern)
				}
			}
			return q
		})
	}

	total, err := q.Count(ctx)
	if err != nil {
		return nil, 0, apperror.ErrDatabase.WithInternal(err)
	}

	err = q.OrderExpr("m.created_at DESC").
		Offset(f.Skip).
		Limit(f.Limit).
		Scan(ctx)
	if err != nil {
		return nil, 0, apperror.ErrDatabase.WithInternal(err)
	}

	dtos := make([]MessageDTO, 0, len(*rows))
	for i := range *rows {
		dtos = append(dtos, MessageDTO{Message: &(*rows)[i].Message, IsRead: (*rows)[i].IsRead})
	}
	return dtos, total, nil
}

// MarkRead records a read receipt. Marking twice is a no-op. Receipts on
// submission group messages are broadcast to the group channel.
func (s *Service) MarkRead(ctx context.Context, p *rolemodel.Principal, id string) error {
	row, err := s.findVisible(ctx, p, id)
	if err != nil {
		return err
	}

	read := &MessageRead{MessageID: id, ReaderUserID: p.UserID}
	_, err = s.db.NewInsert().Model(read).
		On("CONFLICT (message_id, reader_user_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}

	target := TargetOfMessage(&row.Message)
	if target.Scope == ScopeSubmissionGroup {
		s.broadcast(ctx, target, "read:update", map[string]string{
			"channel":    target.Channel(),
			"message_id": id,
			"user_id":    p.UserID,
		})
	}
	return nil
}

// UnmarkRead removes the viewer's read receipt if present.
func (s *Service) UnmarkRead(ctx context.Context, p *rolemodel.Principal, id string) error {
	if _, err := s.findVisible(ctx, p, id); err != nil {
		return err
	}
	_, err := s.db.NewDelete().Model((*MessageRead)(nil)).
		Where("message_id = ?", id).
		Where("reader_user_id = ?", p.UserID).
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// Audit returns the change history of a message. Author and admins only.
func (s *Service) Audit(ctx context.Context, p *rolemodel.Principal, id string) ([]MessageAuditLog, error) {
	row, err := s.findVisible(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin && row.AuthorID != p.UserID {
		return nil, apperror.ErrForbidden.WithMessage("Only the author may read the audit log")
	}

	var entries []MessageAuditLog
	err = s.db.NewSelect().Model(&entries).
		Where("message_id = ?", id).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return entries, nil
}

// baseQuery selects messages with the viewer's read flag, restricted to the
// rows the principal may see.
func (s *Service) baseQuery(p *rolemodel.Principal) *bun.SelectQuery {
	q := s.db.NewSelect().
		ColumnExpr("m.*").
		ColumnExpr(`EXISTS (
			SELECT 1 FROM message_reads mr
			WHERE mr.message_id = m.id AND mr.reader_user_id = ?
		) AS is_read`, p.UserID)

	if p.IsAdmin {
		return q
	}

	userID := p.UserID
	return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			WhereOr("m.author_id = ?", userID).
			WhereOr("m.user_id = ?", userID).
			WhereOr(`m.course_member_id IN (
				SELECT id FROM course_members WHERE user_id = ?)`, userID).
			WhereOr(`m.submission_group_id IN (
				SELECT sgm.submission_group_id FROM submission_group_members sgm
				INNER JOIN course_members cm ON cm.id = sgm.course_member_id
				WHERE cm.user_id = ?)`, userID).
			WhereOr(`m.submission_group_id IN (
				SELECT sg.id FROM submission_groups sg
				INNER JOIN course_contents cc ON cc.id = sg.course_content_id
				INNER JOIN course_members cm ON cm.course_id = cc.course_id
				WHERE cm.user_id = ? AND cm.course_role IN (?))`, userID,
				bun.In(rolemodel.AllowedCourseRoles(rolemodel.RoleTutor))).
			WhereOr(`m.course_group_id IN (
				SELECT cg.id FROM course_groups cg
				INNER JOIN course_members cm ON cm.course_id = cg.course_id
				WHERE cm.user_id = ?)`, userID).
			WhereOr(`m.course_content_id IN (
				SELECT cc.id FROM course_contents cc
				INNER JOIN course_members cm ON cm.course_id = cc.course_id
				WHERE cm.user_id = ?)`, userID).
			WhereOr(`m.course_id IN (
				SELECT course_id FROM course_members WHERE user_id = ?)`, userID)
	})
}

// findVisible loads one message under the visibility predicate. Invisible
// and missing messages are indistinguishable.
func (s *Service) findVisible(ctx context.Context, p *rolemodel.Principal, id string) (*messageRow, error) {
	row := new(messageRow)
	err := s.baseQuery(p).Model(row).Where("m.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("message", id)
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return row, nil
}

// checkWriteRule enforces the per-scope create rules.
func (s *Service) checkWriteRule(ctx context.Context, p *rolemodel.Principal, t Target, defaulted bool) error {
	if p.IsAdmin {
		return nil
	}
	switch t.Scope {
	case ScopeUser:
		if defaulted || t.ID == p.UserID {
			return nil
		}
		return apperror.ErrNotImplemented.WithMessage("Direct user messages are not implemented")
	case ScopeCourseMember:
		return apperror.ErrNotImplemented.WithMessage("Course member messages are not implemented")
	case ScopeCourseGroup:
		return apperror.ErrForbidden.WithMessage("Course group messages are read-only")
	case ScopeSubmissionGroup:
		member, err := s.courses.IsGroupMember(ctx, t.ID, p.UserID)
		if err != nil {
			return err
		}
		if member {
			return nil
		}
		courseID, err := s.courses.GroupCourseID(ctx, t.ID)
		if err != nil {
			return err
		}
		if p.HasCourseRole(courseID, rolemodel.RoleTutor) {
			return nil
		}
		return apperror.ErrForbidden.WithMessage("Not a member of this submission group")
	case ScopeCourseContent:
		content, err := s.courses.FindContent(ctx, t.ID)
		if err != nil {
			return err
		}
		if p.HasCourseRole(content.CourseID, rolemodel.RoleLecturer) {
			return nil
		}
		return apperror.ErrForbidden.WithMessage("Lecturer role required for content announcements")
	case ScopeCourse:
		if p.HasCourseRole(t.ID, rolemodel.RoleLecturer) {
			return nil
		}
		return apperror.ErrForbidden.WithMessage("Lecturer role required for course announcements")
	}
	return apperror.ErrForbidden
}

// tombstoneProps merges deletion metadata into a message's properties.
// Unrelated keys survive the tombstoning.
func tombstoneProps(existing json.RawMessage, reason *string, byKind string) (string, error) {
	props := map[string]any{}
	if len(existing) > 0 {
		_ = json.Unmarshal(existing, &props)
	}
	props["deletion"] = map[string]any{
		"reason":     reason,
		"by_kind":    byKind,
		"deleted_at": time.Now().UTC().Format(time.RFC3339),
	}
	out, err := json.Marshal(props)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// mayModerate reports whether the principal may delete someone else's
// message: admins always, lecturers within the message's course when the
// scope resolves to one.
func (s *Service) mayModerate(ctx context.Context, p *rolemodel.Principal, msg *Message) bool {
	if p.IsAdmin {
		return true
	}
	courseID := ""
	switch t := TargetOfMessage(msg); t.Scope {
	case ScopeCourse:
		courseID = t.ID
	case ScopeCourseContent:
		if content, err := s.courses.FindContent(ctx, t.ID); err == nil {
			courseID = content.CourseID
		}
	case ScopeSubmissionGroup:
		if id, err := s.courses.GroupCourseID(ctx, t.ID); err == nil {
			courseID = id
		}
	case ScopeCourseGroup:
		if id, err := s.courses.CourseGroupCourseID(ctx, t.ID); err == nil {
			courseID = id
		}
	}
	return courseID != "" && p.HasCourseRole(courseID, rolemodel.RoleLecturer)
}

func (s *Service) broadcast(ctx context.Context, t Target, event string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Broadcast(ctx, t.Channel(), event, payload)
	s.log.Debug("event broadcast", slog.String("channel", t.Channel()), slog.String("event", event))
}
