package moderation

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/veranda-social/veranda/internal/metrics"
)

// MaxReportReasonLength is the maximum stored length of a report reason.
const MaxReportReasonLength = 500

// DefaultPageSize bounds report listings when the caller does not choose one.
const DefaultPageSize = 20

// MaxPageSize caps the page size a caller can request.
const MaxPageSize = 100

// ReportManager creates, lists, groups, and resolves reports.
type ReportManager struct {
	store    Store
	notifier *Notifier
	now      func() time.Time
}

// NewReportManager creates a ReportManager. The notifier may be nil, in which
// case no live update events are published.
func NewReportManager(store Store, notifier *Notifier) *ReportManager {
	return &ReportManager{
		store:    store,
		notifier: notifier,
		now:      time.Now,
	}
}

// Create files a report against a post or comment. Reports always start
// pending. Duplicate reports from the same reporter against the same target
// are permitted here; deduplication is a read-time grouping concern, not a
// write-time constraint.
func (m *ReportManager) Create(ctx context.Context, reporterID string, t TargetType, targetID, communityID, reason string) (*Report, Result) {
	if reporterID == "" {
		return nil, failed(CodeUnauthorized, "reporting requires an authenticated identity")
	}
	if !t.Valid() {
		return nil, failed(CodeInvalid, "unknown target type: "+string(t))
	}
	if targetID == "" {
		return nil, failed(CodeInvalid, "target id is required")
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "No reason provided"
	}
	if len(reason) > MaxReportReasonLength {
		reason = reason[:MaxReportReasonLength]
	}

	report := Report{
		ID:          newID(),
		TargetType:  t,
		TargetID:    targetID,
		CommunityID: communityID,
		ReporterID:  reporterID,
		Reason:      reason,
		Status:      ReportPending,
		CreatedAt:   m.now(),
	}

	if err := m.store.CreateReport(ctx, report); err != nil {
		log.Error().Err(err).Str("reporter_id", reporterID).Str("target_id", targetID).Msg("reports: failed to create report")
		return nil, failed(CodeStoreError, "failed to save report")
	}

	log.Info().
		Str("report_id", report.ID).
		Str("target_type", string(report.TargetType)).
		Str("target_id", report.TargetID).
		Str("community_id", report.CommunityID).
		Str("reporter_id", report.ReporterID).
		Msg("reports: report created")
	metrics.ReportsCreatedTotal.Inc()

	if m.notifier != nil {
		m.notifier.Publish(Event{
			Kind:        EventReport,
			CommunityID: report.CommunityID,
			TargetType:  report.TargetType,
			TargetID:    report.TargetID,
			ReportID:    report.ID,
			At:          report.CreatedAt,
		})
	}

	return &report, ok()
}

// List returns reports matching the filter plus the total match count for
// page controls. Page numbering starts at 1.
func (m *ReportManager) List(ctx context.Context, f ReportFilter) ([]Report, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return m.store.ListReports(ctx, f)
}

// ListGrouped returns the grouped projection of pending reports matching the
// community/search filter, paged over groups. The underlying rows are never
// merged in storage.
func (m *ReportManager) ListGrouped(ctx context.Context, f ReportFilter) ([]ReportGroup, int, error) {
	page := f.Page
	if page < 1 {
		page = 1
	}
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	// Grouping operates on the full pending set; paging applies to groups.
	full := f
	full.Status = ReportPending
	full.Page = 0
	full.PageSize = 0

	reports, _, err := m.store.ListReports(ctx, full)
	if err != nil {
		return nil, 0, err
	}

	groups := GroupReports(reports)
	total := len(groups)

	start := (page - 1) * pageSize
	if start >= len(groups) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(groups) {
		end = len(groups)
	}
	return groups[start:end], total, nil
}

// Resolve transitions a pending report to resolved or dismissed. Terminal
// states are final: resolving an already-closed report is a no-op that
// reports failure.
func (m *ReportManager) Resolve(ctx context.Context, reportID string, status ReportStatus, resolvedBy string) Result {
	if !status.Terminal() {
		return failed(CodeInvalid, "report status must be resolved or dismissed")
	}

	report, err := m.store.GetReport(ctx, reportID)
	if err != nil {
		log.Error().Err(err).Str("report_id", reportID).Msg("reports: failed to load report")
		return failed(CodeStoreError, "failed to load report")
	}
	if report == nil {
		return failed(CodeNotFound, "report not found: "+reportID)
	}
	if report.Status != ReportPending {
		return failed(CodeConflict, "report already "+string(report.Status))
	}

	updated, err := m.store.ResolveReport(ctx, reportID, status, resolvedBy)
	if err != nil {
		log.Error().Err(err).Str("report_id", reportID).Msg("reports: failed to resolve report")
		return failed(CodeStoreError, "failed to update report")
	}
	if !updated {
		// Lost a race with another moderator; the first resolution stands.
		return failed(CodeConflict, "report was resolved concurrently")
	}

	log.Info().
		Str("report_id", reportID).
		Str("status", string(status)).
		Str("resolved_by", resolvedBy).
		Msg("reports: report resolved")
	return ok()
}

// GroupReports merges reports sharing one (target type, target id) into
// grouped rows. It is a pure projection: reporter and reason come from the
// earliest report in each group and groups are ordered by their most recent
// report, newest first.
func GroupReports(reports []Report) []ReportGroup {
	byTarget := make(map[string]*ReportGroup)
	var order []string

	for _, r := range reports {
		key := string(r.TargetType) + ":" + r.TargetID
		g, exists := byTarget[key]
		if !exists {
			g = &ReportGroup{
				TargetType:  r.TargetType,
				TargetID:    r.TargetID,
				CommunityID: r.CommunityID,
				ReporterID:  r.ReporterID,
				Reason:      r.Reason,
				EarliestAt:  r.CreatedAt,
				LatestAt:    r.CreatedAt,
			}
			byTarget[key] = g
			order = append(order, key)
		}

		g.ReportCount++
		g.ReportIDs = append(g.ReportIDs, r.ID)

		if r.CreatedAt.Before(g.EarliestAt) {
			g.EarliestAt = r.CreatedAt
			g.ReporterID = r.ReporterID
			g.Reason = r.Reason
		}
		if r.CreatedAt.After(g.LatestAt) {
			g.LatestAt = r.CreatedAt
		}
	}

	groups := make([]ReportGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, *byTarget[key])
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].LatestAt.After(groups[j].LatestAt)
	})
	return groups
}
