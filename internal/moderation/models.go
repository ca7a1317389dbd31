package moderation

import "time"

// GlobalRole is a platform-wide role assignment.
type GlobalRole string

const (
	RoleAdmin     GlobalRole = "admin"
	RoleModerator GlobalRole = "moderator"
	RoleMember    GlobalRole = "member"
)

// rolePriority orders global roles for collapsing multiple assignments.
// Higher wins.
var rolePriority = map[GlobalRole]int{
	RoleAdmin:     3,
	RoleModerator: 2,
	RoleMember:    1,
}

// EffectiveRole collapses a set of global role assignments into the single
// highest-priority role. Returns "" when the set is empty or contains only
// unknown values.
func EffectiveRole(roles []GlobalRole) GlobalRole {
	var best GlobalRole
	for _, r := range roles {
		if rolePriority[r] > rolePriority[best] {
			best = r
		}
	}
	return best
}

// CommunityRole is a role grant scoped to a single community, independent
// of any global role the same user holds.
type CommunityRole string

const (
	CommunityRoleOwner     CommunityRole = "owner"
	CommunityRoleAdmin     CommunityRole = "admin"
	CommunityRoleModerator CommunityRole = "moderator"
	CommunityRoleMember    CommunityRole = "member"
)

// CanModerateCommunity reports whether this community role grants moderation
// capability within its community.
func (r CommunityRole) CanModerateCommunity() bool {
	return r == CommunityRoleOwner || r == CommunityRoleAdmin || r == CommunityRoleModerator
}

// PermissionSet is the derived capability set for one (user, community) pair.
// It is computed fresh on every resolution and never persisted.
type PermissionSet struct {
	CanModeratePosts    bool       `json:"can_moderate_posts"`
	CanModerateUsers    bool       `json:"can_moderate_users"`
	CanAssignModerators bool       `json:"can_assign_moderators"`
	CanViewReports      bool       `json:"can_view_reports"`
	CanModerate         bool       `json:"can_moderate"`
	Role                GlobalRole `json:"role,omitempty"`
}

// TargetType identifies the kind of content a report or action refers to.
type TargetType string

const (
	TargetPost    TargetType = "post"
	TargetComment TargetType = "comment"
)

// Valid reports whether t is a known target type.
func (t TargetType) Valid() bool {
	return t == TargetPost || t == TargetComment
}

// ContentStatus is the visibility state of a post or comment. It is distinct
// from report status and is mutated only by the action engine.
type ContentStatus string

const (
	ContentActive  ContentStatus = "active"
	ContentFlagged ContentStatus = "flagged"
	ContentDeleted ContentStatus = "deleted"
)

// Content is the moderation-relevant view of a post or comment row.
type Content struct {
	Type        TargetType    `json:"type"`
	ID          string        `json:"id"`
	CommunityID string        `json:"community_id"`
	AuthorID    string        `json:"author_id"`
	Status      ContentStatus `json:"status"`
}

// ReportStatus is the lifecycle state of a single filed report.
type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportResolved  ReportStatus = "resolved"
	ReportDismissed ReportStatus = "dismissed"
)

// Terminal reports whether s is a final report status.
func (s ReportStatus) Terminal() bool {
	return s == ReportResolved || s == ReportDismissed
}

// Report represents a flag raised by a member against a post or comment.
type Report struct {
	ID          string       `json:"id"`
	TargetType  TargetType   `json:"target_type"`
	TargetID    string       `json:"target_id"`
	CommunityID string       `json:"community_id"`
	ReporterID  string       `json:"reporter_id"`
	Reason      string       `json:"reason"`
	Status      ReportStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	ResolvedBy  string       `json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time   `json:"resolved_at,omitempty"`
}

// ReportFilter selects and pages reports. Filters compose with AND semantics.
// A zero PageSize disables pagination and returns all matching rows.
type ReportFilter struct {
	CommunityID string       `json:"community_id,omitempty"`
	Status      ReportStatus `json:"status,omitempty"`
	Search      string       `json:"search,omitempty"`
	Page        int          `json:"page"`
	PageSize    int          `json:"page_size"`
}

// ReportGroup is the read-time projection of pending reports sharing one
// target. Reporter and Reason carry the earliest underlying report's metadata;
// LatestAt carries the newest, which orders groups in dashboards.
type ReportGroup struct {
	TargetType  TargetType `json:"target_type"`
	TargetID    string     `json:"target_id"`
	CommunityID string     `json:"community_id"`
	ReportCount int        `json:"report_count"`
	ReportIDs   []string   `json:"report_ids"`
	ReporterID  string     `json:"reporter_id"`
	Reason      string     `json:"reason"`
	EarliestAt  time.Time  `json:"earliest_at"`
	LatestAt    time.Time  `json:"latest_at"`
}

// ActionType is a moderation action a moderator can take.
type ActionType string

const (
	ActionApprove ActionType = "approve"
	ActionHide    ActionType = "hide"
	ActionWarn    ActionType = "warn"
	ActionDelete  ActionType = "delete"
	ActionRestore ActionType = "restore"
	ActionDismiss ActionType = "dismiss"
)

// Valid reports whether a is a known action type.
func (a ActionType) Valid() bool {
	switch a {
	case ActionApprove, ActionHide, ActionWarn, ActionDelete, ActionRestore, ActionDismiss:
		return true
	}
	return false
}

// RequiresReason reports whether the action must carry an author-facing
// reason before any write happens.
func (a ActionType) RequiresReason() bool {
	return a == ActionWarn || a == ActionDelete
}

// Action is an immutable audit record of a taken moderation action. Rows are
// append-only and never updated or deleted; they are the system of record for
// what happened and who did it.
type Action struct {
	ID          string     `json:"id"`
	ModeratorID string     `json:"moderator_id"`
	Type        ActionType `json:"type"`
	TargetType  TargetType `json:"target_type"`
	TargetID    string     `json:"target_id"`
	CommunityID string     `json:"community_id"`
	Description string     `json:"description,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// EventKind classifies live update events.
type EventKind string

const (
	EventReport EventKind = "report"
	EventAction EventKind = "action"
)

// Event is a live update pushed to subscribed moderator dashboards. Delivery
// is best-effort; dashboards re-fetch authoritative lists on mount.
type Event struct {
	Kind        EventKind  `json:"kind"`
	CommunityID string     `json:"community_id"`
	TargetType  TargetType `json:"target_type"`
	TargetID    string     `json:"target_id"`
	ReportID    string     `json:"report_id,omitempty"`
	ActionID    string     `json:"action_id,omitempty"`
	ActionType  ActionType `json:"action_type,omitempty"`
	At          time.Time  `json:"at"`
}
