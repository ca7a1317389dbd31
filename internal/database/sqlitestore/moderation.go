package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/veranda-social/veranda/internal/moderation"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ModerationStore implements moderation.Store using SQLite.
type ModerationStore struct {
	db *sql.DB
	q  querier
}

// NewModerationStore creates a ModerationStore backed by the given database.
// The database must already have the moderation schema applied.
func NewModerationStore(db *sql.DB) *ModerationStore {
	return &ModerationStore{db: db, q: db}
}

// Ensure interface conformance at compile time.
var (
	_ moderation.Store   = (*ModerationStore)(nil)
	_ moderation.TxStore = (*ModerationStore)(nil)
)

// WithinTx runs fn against a transaction-bound store. All writes commit or
// roll back together.
func (s *ModerationStore) WithinTx(ctx context.Context, fn func(moderation.Store) error) error {
	if _, bound := s.q.(*sql.Tx); bound {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&ModerationStore{db: s.db, q: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ========== Roles ==========

func (s *ModerationStore) GlobalRoles(ctx context.Context, userID string) ([]moderation.GlobalRole, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT role FROM role_assignments WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []moderation.GlobalRole
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			continue
		}
		roles = append(roles, moderation.GlobalRole(role))
	}
	return roles, rows.Err()
}

func (s *ModerationStore) GrantGlobalRole(ctx context.Context, userID string, role moderation.GlobalRole) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO role_assignments (user_id, role) VALUES (?, ?)
	`, userID, string(role))
	if err != nil {
		return fmt.Errorf("grant global role: %w", err)
	}
	return nil
}

func (s *ModerationStore) CommunityRole(ctx context.Context, userID, communityID string) (moderation.CommunityRole, bool, error) {
	var role string
	err := s.q.QueryRowContext(ctx, `
		SELECT role FROM community_roles WHERE user_id = ? AND community_id = ?
	`, userID, communityID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return moderation.CommunityRole(role), true, nil
}

func (s *ModerationStore) GrantCommunityRole(ctx context.Context, userID, communityID string, role moderation.CommunityRole) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO community_roles (user_id, community_id, role) VALUES (?, ?, ?)
		ON CONFLICT(user_id, community_id) DO UPDATE SET role = excluded.role
	`, userID, communityID, string(role))
	if err != nil {
		return fmt.Errorf("grant community role: %w", err)
	}
	return nil
}

func (s *ModerationStore) RevokeCommunityRole(ctx context.Context, userID, communityID string) error {
	_, err := s.q.ExecContext(ctx, `
		DELETE FROM community_roles WHERE user_id = ? AND community_id = ?
	`, userID, communityID)
	return err
}

// ========== Content ==========

func (s *ModerationStore) GetContent(ctx context.Context, t moderation.TargetType, id string) (*moderation.Content, error) {
	var c moderation.Content
	err := s.q.QueryRowContext(ctx, `
		SELECT type, id, community_id, author_id, status FROM content WHERE type = ? AND id = ?
	`, string(t), id).Scan(&c.Type, &c.ID, &c.CommunityID, &c.AuthorID, &c.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *ModerationStore) PutContent(ctx context.Context, c moderation.Content) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO content (type, id, community_id, author_id, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(type, id) DO UPDATE SET
			community_id = excluded.community_id,
			author_id    = excluded.author_id,
			status       = excluded.status
	`, string(c.Type), c.ID, c.CommunityID, c.AuthorID, string(c.Status))
	if err != nil {
		return fmt.Errorf("put content: %w", err)
	}
	return nil
}

func (s *ModerationStore) SetContentStatus(ctx context.Context, t moderation.TargetType, id string, status moderation.ContentStatus) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE content SET status = ? WHERE type = ? AND id = ?
	`, string(status), string(t), id)
	if err != nil {
		return fmt.Errorf("set content status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("content not found: %s/%s", t, id)
	}
	return nil
}

// ========== Reports ==========

func (s *ModerationStore) CreateReport(ctx context.Context, report moderation.Report) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO reports
			(id, target_type, target_id, community_id, reporter_id, reason, status, created_at, resolved_by, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.ID, string(report.TargetType), report.TargetID, report.CommunityID, report.ReporterID,
		report.Reason, string(report.Status), report.CreatedAt.Format(time.RFC3339Nano), report.ResolvedBy, nil)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

func (s *ModerationStore) GetReport(ctx context.Context, id string) (*moderation.Report, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, target_type, target_id, community_id, reporter_id, reason, status, created_at, resolved_by, resolved_at
		FROM reports WHERE id = ?
	`, id)
	report, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*moderation.Report, error) {
	var r moderation.Report
	var createdAtStr string
	var resolvedAtStr sql.NullString
	err := row.Scan(&r.ID, &r.TargetType, &r.TargetID, &r.CommunityID, &r.ReporterID,
		&r.Reason, &r.Status, &createdAtStr, &r.ResolvedBy, &resolvedAtStr)
	if err != nil {
		return nil, err
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
	if resolvedAtStr.Valid {
		t, _ := time.Parse(time.RFC3339Nano, resolvedAtStr.String)
		r.ResolvedAt = &t
	}
	return &r, nil
}

func (s *ModerationStore) ListReports(ctx context.Context, f moderation.ReportFilter) ([]moderation.Report, int, error) {
	var where []string
	var args []any

	if f.CommunityID != "" {
		where = append(where, `community_id = ?`)
		args = append(args, f.CommunityID)
	}
	if f.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, string(f.Status))
	}
	if f.Search != "" {
		where = append(where, `(reason LIKE ? OR target_id LIKE ? OR reporter_id LIKE ?)`)
		needle := "%" + f.Search + "%"
		args = append(args, needle, needle, needle)
	}

	clause := ""
	if len(where) > 0 {
		clause = ` WHERE ` + strings.Join(where, " AND ")
	}

	var total int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, target_type, target_id, community_id, reporter_id, reason, status, created_at, resolved_by, resolved_at
		FROM reports` + clause + ` ORDER BY created_at DESC`
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.PageSize, (page-1)*f.PageSize)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var reports []moderation.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			continue
		}
		reports = append(reports, *r)
	}
	return reports, total, rows.Err()
}

func (s *ModerationStore) ResolveReport(ctx context.Context, id string, status moderation.ReportStatus, resolvedBy string) (bool, error) {
	now := time.Now().Format(time.RFC3339Nano)
	res, err := s.q.ExecContext(ctx, `
		UPDATE reports SET status = ?, resolved_by = ?, resolved_at = ?
		WHERE id = ? AND status = 'pending'
	`, string(status), resolvedBy, now, id)
	if err != nil {
		return false, fmt.Errorf("resolve report: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *ModerationStore) CountReportsByReporterSince(ctx context.Context, reporterID string, since time.Time) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reports WHERE reporter_id = ? AND created_at > ?
	`, reporterID, since.Format(time.RFC3339Nano)).Scan(&count)
	return count, err
}

// CountPendingReports returns the number of reports awaiting review.
func (s *ModerationStore) CountPendingReports(ctx context.Context) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports WHERE status = 'pending'`).Scan(&count)
	return count, err
}

// ========== Audit Log ==========

func (s *ModerationStore) AppendAction(ctx context.Context, action moderation.Action) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO moderation_actions
			(id, moderator_id, action, target_type, target_id, community_id, description, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, action.ID, action.ModeratorID, string(action.Type), string(action.TargetType), action.TargetID,
		action.CommunityID, action.Description, action.Reason, action.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append action: %w", err)
	}
	return nil
}

func (s *ModerationStore) ListActionsForTarget(ctx context.Context, t moderation.TargetType, id string, limit int) ([]moderation.Action, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, moderator_id, action, target_type, target_id, community_id, description, reason, created_at
		FROM moderation_actions WHERE target_type = ? AND target_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, string(t), id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActions(rows)
}

func (s *ModerationStore) RecentActions(ctx context.Context, limit int) ([]moderation.Action, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, moderator_id, action, target_type, target_id, community_id, description, reason, created_at
		FROM moderation_actions ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActions(rows)
}

// CountActions returns the total number of audit records.
func (s *ModerationStore) CountActions(ctx context.Context) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM moderation_actions`).Scan(&count)
	return count, err
}

func scanActions(rows *sql.Rows) ([]moderation.Action, error) {
	var actions []moderation.Action
	for rows.Next() {
		var a moderation.Action
		var createdAtStr string
		if err := rows.Scan(&a.ID, &a.ModeratorID, &a.Type, &a.TargetType, &a.TargetID,
			&a.CommunityID, &a.Description, &a.Reason, &createdAtStr); err != nil {
			continue
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
