package moderation

import (
	"context"
	"time"
)

// Store defines the persistence interface for moderation data.
// Implementations must be safe for concurrent use.
type Store interface {
	// Role assignments. Role rows are owned by an external admin-management
	// process; the grant methods exist for that process to write through and
	// for test fixtures.
	GlobalRoles(ctx context.Context, userID string) ([]GlobalRole, error)
	GrantGlobalRole(ctx context.Context, userID string, role GlobalRole) error
	CommunityRole(ctx context.Context, userID, communityID string) (CommunityRole, bool, error)
	GrantCommunityRole(ctx context.Context, userID, communityID string, role CommunityRole) error
	RevokeCommunityRole(ctx context.Context, userID, communityID string) error

	// Content visibility. Status is mutated exclusively by the action engine.
	GetContent(ctx context.Context, t TargetType, id string) (*Content, error)
	PutContent(ctx context.Context, c Content) error
	SetContentStatus(ctx context.Context, t TargetType, id string, status ContentStatus) error

	// Reports.
	CreateReport(ctx context.Context, report Report) error
	GetReport(ctx context.Context, id string) (*Report, error)
	ListReports(ctx context.Context, f ReportFilter) ([]Report, int, error)
	// ResolveReport transitions a pending report to a terminal status.
	// Returns false without error when the report is missing or no longer
	// pending, so terminal states stay final under concurrent resolution.
	ResolveReport(ctx context.Context, id string, status ReportStatus, resolvedBy string) (bool, error)
	CountReportsByReporterSince(ctx context.Context, reporterID string, since time.Time) (int, error)

	// Audit log. Append-only.
	AppendAction(ctx context.Context, action Action) error
	ListActionsForTarget(ctx context.Context, t TargetType, id string, limit int) ([]Action, error)
	RecentActions(ctx context.Context, limit int) ([]Action, error)
}

// TxStore is optionally implemented by stores that can execute a function
// against a transaction-bound Store. The action engine uses it to apply the
// content-status update and audit append atomically when the backend allows;
// stores without it fall back to the documented best-effort ordering.
type TxStore interface {
	WithinTx(ctx context.Context, fn func(Store) error) error
}
