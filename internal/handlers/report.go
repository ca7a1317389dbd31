package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/veranda-social/veranda/internal/identity"
	"github.com/veranda-social/veranda/internal/moderation"
	"github.com/veranda-social/veranda/internal/tracing"

	"github.com/rs/zerolog/log"
)

// ReportRateLimitPerHour is the maximum reports a user can submit per hour.
const ReportRateLimitPerHour = 10

// ReportRequest represents the JSON request for submitting a report
type ReportRequest struct {
	TargetType  string `json:"target_type"`
	TargetID    string `json:"target_id"`
	CommunityID string `json:"community_id"`
	Reason      string `json:"reason"`
}

// ReportResponse represents the JSON response from report submission
type ReportResponse struct {
	ID      string `json:"id,omitempty"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HandleReportSubmit handles POST /api/reports.
// Requires authentication, validates input, checks rate limits, and persists
// the report. Duplicate reports against the same target are allowed; they are
// grouped at read time for the dashboard.
func (h *Handler) HandleReportSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, authed := identity.FromContext(ctx)
	if !authed {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	targetType := moderation.TargetType(req.TargetType)
	if !targetType.Valid() {
		writeError(w, "target_type must be post or comment", http.StatusBadRequest)
		return
	}
	if req.TargetID == "" {
		writeError(w, "target_id is required", http.StatusBadRequest)
		return
	}

	// When the target is known locally, its community is authoritative and
	// self-reports are rejected.
	communityID := req.CommunityID
	if content, err := h.store.GetContent(ctx, targetType, req.TargetID); err == nil && content != nil {
		communityID = content.CommunityID
		if content.AuthorID != "" && content.AuthorID == session.ID {
			writeError(w, "You cannot report your own content", http.StatusBadRequest)
			return
		}
	}

	// Rate limit report submissions per reporter.
	oneHourAgo := time.Now().Add(-1 * time.Hour)
	recentCount, err := h.store.CountReportsByReporterSince(ctx, session.ID, oneHourAgo)
	if err != nil {
		log.Error().Err(err).Str("reporter_id", session.ID).Msg("handlers: failed to check report rate limit")
		writeError(w, "Failed to process report", http.StatusInternalServerError)
		return
	}
	if recentCount >= ReportRateLimitPerHour {
		writeError(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		return
	}

	ctx, span := tracing.ReportSpan(ctx, "create", "")
	report, result := h.reports.Create(ctx, session.ID, targetType, req.TargetID, communityID, req.Reason)
	span.End()
	if !result.OK {
		writeError(w, result.Message, resultStatus(result.Code))
		return
	}

	writeJSON(w, http.StatusOK, ReportResponse{
		ID:      report.ID,
		Status:  "received",
		Message: "Thank you for your report. It will be reviewed by a moderator.",
	})
}

// reportListResponse carries one page of reports plus the total for page controls.
type reportListResponse struct {
	Reports []moderation.Report `json:"reports"`
	Total   int                 `json:"total"`
	Page    int                 `json:"page"`
}

// HandleReportList handles GET /api/reports.
// Filters: community_id, status, search; pagination: page, page_size.
func (h *Handler) HandleReportList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, authed := identity.FromContext(ctx)
	if !authed {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	filter := reportFilterFromQuery(r)
	ps := h.resolver.Resolve(ctx, session.ID, filter.CommunityID)
	if !ps.CanViewReports {
		writeError(w, "Permission denied", http.StatusForbidden)
		return
	}

	reports, total, err := h.reports.List(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("handlers: failed to list reports")
		writeError(w, "Failed to load reports", http.StatusInternalServerError)
		return
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	writeJSON(w, http.StatusOK, reportListResponse{Reports: reports, Total: total, Page: page})
}

// groupedReportsResponse carries one page of grouped pending reports.
type groupedReportsResponse struct {
	Groups []moderation.ReportGroup `json:"groups"`
	Total  int                      `json:"total"`
	Page   int                      `json:"page"`
}

// HandleReportGroups handles GET /api/reports/grouped: the dashboard view of
// pending reports merged by target.
func (h *Handler) HandleReportGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, authed := identity.FromContext(ctx)
	if !authed {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	filter := reportFilterFromQuery(r)
	ps := h.resolver.Resolve(ctx, session.ID, filter.CommunityID)
	if !ps.CanViewReports {
		writeError(w, "Permission denied", http.StatusForbidden)
		return
	}

	groups, total, err := h.reports.ListGrouped(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("handlers: failed to list grouped reports")
		writeError(w, "Failed to load reports", http.StatusInternalServerError)
		return
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	writeJSON(w, http.StatusOK, groupedReportsResponse{Groups: groups, Total: total, Page: page})
}

func reportFilterFromQuery(r *http.Request) moderation.ReportFilter {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	return moderation.ReportFilter{
		CommunityID: q.Get("community_id"),
		Status:      moderation.ReportStatus(q.Get("status")),
		Search:      q.Get("search"),
		Page:        page,
		PageSize:    pageSize,
	}
}
