package moderation

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/veranda-social/veranda/internal/metrics"
)

// DefaultAuditLimit bounds audit log reads when the caller does not choose a
// limit; MaxAuditLimit caps the limit a caller can request.
const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 200
)

// ActionRequest describes one moderation action. Either ReportID or the
// (TargetType, TargetID) pair identifies the target; a request always
// resolves to exactly one content item and one community.
type ActionRequest struct {
	ModeratorID string     `json:"moderator_id"`
	Type        ActionType `json:"type"`
	ReportID    string     `json:"report_id,omitempty"`
	TargetType  TargetType `json:"target_type,omitempty"`
	TargetID    string     `json:"target_id,omitempty"`
	Description string     `json:"description,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

// Engine executes moderation actions: it validates the request, re-checks the
// caller's permissions, applies the content-status transition, appends the
// immutable audit record, and closes the originating report.
//
// The audit record is authoritative: if it cannot be written the whole action
// reports failure, even when the content status was already flipped. When the
// store supports transactions the status update and audit append are applied
// atomically; otherwise the documented ordering applies and partial outcomes
// are surfaced through ActionResult.Warnings. The report-status update is
// best-effort bookkeeping either way and never fails the action.
type Engine struct {
	store    Store
	perms    *Resolver
	notifier *Notifier
	now      func() time.Time
}

// NewEngine creates an Engine. The notifier may be nil.
func NewEngine(store Store, perms *Resolver, notifier *Notifier) *Engine {
	return &Engine{
		store:    store,
		perms:    perms,
		notifier: notifier,
		now:      time.Now,
	}
}

// transition maps an action to the resulting content status. The second
// return value is false for actions that leave content untouched.
func transition(a ActionType, current ContentStatus) (ContentStatus, bool) {
	switch a {
	case ActionApprove, ActionRestore:
		return ContentActive, true
	case ActionHide, ActionWarn:
		return ContentFlagged, true
	case ActionDelete:
		return ContentDeleted, true
	default: // dismiss
		return current, false
	}
}

// TakeAction validates and executes one moderation action. Repeat actions on
// already-transitioned content are permitted: the status is re-written and a
// fresh audit record appended, so moderators are never blocked from
// re-applying an action after investigation.
func (e *Engine) TakeAction(ctx context.Context, req ActionRequest) ActionResult {
	if !req.Type.Valid() {
		return actionFailed(CodeInvalid, "unknown action type: "+string(req.Type))
	}
	if req.Type.RequiresReason() && req.Reason == "" {
		return actionFailed(CodeInvalid, string(req.Type)+" requires a reason")
	}

	// Resolve the target, from the report when one drives the action.
	var report *Report
	targetType, targetID := req.TargetType, req.TargetID
	if req.ReportID != "" {
		r, err := e.store.GetReport(ctx, req.ReportID)
		if err != nil {
			log.Error().Err(err).Str("report_id", req.ReportID).Msg("engine: failed to load report")
			return actionFailed(CodeStoreError, "failed to load report")
		}
		if r == nil {
			return actionFailed(CodeNotFound, "report not found: "+req.ReportID)
		}
		report = r
		targetType, targetID = r.TargetType, r.TargetID
	}
	if !targetType.Valid() || targetID == "" {
		return actionFailed(CodeInvalid, "a report id or target is required")
	}

	content, err := e.store.GetContent(ctx, targetType, targetID)
	if err != nil {
		log.Error().Err(err).Str("target_id", targetID).Msg("engine: failed to load target content")
		return actionFailed(CodeStoreError, "failed to load target content")
	}
	if content == nil {
		return actionFailed(CodeNotFound, "target content not found")
	}

	// Defense-in-depth: the UI gates controls on the same permission set, but
	// the engine never trusts that gating.
	ps := e.perms.Resolve(ctx, req.ModeratorID, content.CommunityID)
	if !ps.CanModeratePosts {
		log.Warn().
			Str("moderator_id", req.ModeratorID).
			Str("community_id", content.CommunityID).
			Str("action", string(req.Type)).
			Msg("engine: denied, insufficient permissions")
		metrics.PermissionDenialsTotal.Inc()
		return actionFailed(CodeUnauthorized, "not permitted to moderate in this community")
	}

	newStatus, mutate := transition(req.Type, content.Status)
	action := Action{
		ID:          newID(),
		ModeratorID: req.ModeratorID,
		Type:        req.Type,
		TargetType:  targetType,
		TargetID:    targetID,
		CommunityID: content.CommunityID,
		Description: req.Description,
		Reason:      req.Reason,
		CreatedAt:   e.now(),
	}

	result := ActionResult{ContentStatus: newStatus, ActionID: action.ID}
	result.OK = true
	result.Code = CodeOK

	if ts, isTx := e.store.(TxStore); isTx {
		err := ts.WithinTx(ctx, func(s Store) error {
			if mutate {
				if err := s.SetContentStatus(ctx, targetType, targetID, newStatus); err != nil {
					return err
				}
			}
			return s.AppendAction(ctx, action)
		})
		if err != nil {
			log.Error().Err(err).Str("action_id", action.ID).Msg("engine: action transaction failed")
			return actionFailed(CodeStoreError, "failed to apply action")
		}
	} else {
		if mutate {
			if err := e.store.SetContentStatus(ctx, targetType, targetID, newStatus); err != nil {
				log.Error().Err(err).Str("target_id", targetID).Msg("engine: failed to update content status")
				return actionFailed(CodeStoreError, "failed to update content status")
			}
		}
		if err := e.store.AppendAction(ctx, action); err != nil {
			log.Error().Err(err).Str("action_id", action.ID).Msg("engine: failed to write audit record")
			failure := actionFailed(CodeStoreError, "failed to write audit record")
			if mutate {
				failure.Warnings = append(failure.Warnings, "content status was updated but the audit record failed")
			}
			return failure
		}
	}

	// Close the originating report. Best-effort: the action itself is the
	// source of truth, report status is bookkeeping.
	if report != nil {
		reportStatus := ReportResolved
		if req.Type == ActionDismiss {
			reportStatus = ReportDismissed
		}
		updated, err := e.store.ResolveReport(ctx, report.ID, reportStatus, req.ModeratorID)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("report_id", report.ID).Msg("engine: failed to update report status")
			result.Warnings = append(result.Warnings, "action applied but the report status update failed")
		case !updated:
			result.Warnings = append(result.Warnings, "report was already closed")
		default:
			result.ReportResolved = true
		}
	}

	log.Info().
		Str("action_id", action.ID).
		Str("action", string(action.Type)).
		Str("moderator_id", action.ModeratorID).
		Str("target_type", string(targetType)).
		Str("target_id", targetID).
		Str("content_status", string(newStatus)).
		Msg("engine: action applied")
	metrics.ActionsTotal.WithLabelValues(string(action.Type)).Inc()

	if e.notifier != nil {
		e.notifier.Publish(Event{
			Kind:        EventAction,
			CommunityID: content.CommunityID,
			TargetType:  targetType,
			TargetID:    targetID,
			ReportID:    req.ReportID,
			ActionID:    action.ID,
			ActionType:  action.Type,
			At:          action.CreatedAt,
		})
	}

	return result
}

// AuditTrail returns the most recent audit records for one target.
func (e *Engine) AuditTrail(ctx context.Context, t TargetType, targetID string, limit int) ([]Action, error) {
	return e.store.ListActionsForTarget(ctx, t, targetID, clampAuditLimit(limit))
}

// RecentAuditLog returns the most recent audit records platform-wide.
func (e *Engine) RecentAuditLog(ctx context.Context, limit int) ([]Action, error) {
	return e.store.RecentActions(ctx, clampAuditLimit(limit))
}

func clampAuditLimit(limit int) int {
	if limit <= 0 {
		return DefaultAuditLimit
	}
	if limit > MaxAuditLimit {
		return MaxAuditLimit
	}
	return limit
}

func actionFailed(code ResultCode, msg string) ActionResult {
	return ActionResult{Result: failed(code, msg)}
}
