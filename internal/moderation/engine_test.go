package moderation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// engineFixture wires an engine over the in-memory store with one moderator
// ("mod-1", community moderator of "gardening") and one active post.
func engineFixture(t *testing.T) (*Engine, *memStore) {
	t.Helper()
	ctx := context.Background()
	store := newMemStore()

	require.NoError(t, store.GrantGlobalRole(ctx, "mod-1", RoleModerator))
	require.NoError(t, store.GrantCommunityRole(ctx, "mod-1", "gardening", CommunityRoleModerator))
	require.NoError(t, store.PutContent(ctx, Content{
		Type:        TargetPost,
		ID:          "post-1",
		CommunityID: "gardening",
		AuthorID:    "author-1",
		Status:      ContentActive,
	}))

	engine := NewEngine(store, newTestResolver(t, store), nil)
	return engine, store
}

func TestTakeActionTransitions(t *testing.T) {
	tests := []struct {
		action ActionType
		from   ContentStatus
		want   ContentStatus
	}{
		{ActionApprove, ContentFlagged, ContentActive},
		{ActionApprove, ContentActive, ContentActive},
		{ActionRestore, ContentDeleted, ContentActive},
		{ActionRestore, ContentFlagged, ContentActive},
		{ActionHide, ContentActive, ContentFlagged},
		{ActionWarn, ContentActive, ContentFlagged},
		{ActionDelete, ContentActive, ContentDeleted},
		{ActionDelete, ContentFlagged, ContentDeleted},
		{ActionDismiss, ContentActive, ContentActive},
		{ActionDismiss, ContentFlagged, ContentFlagged},
		{ActionDismiss, ContentDeleted, ContentDeleted},
	}

	for _, tt := range tests {
		t.Run(string(tt.action)+"_from_"+string(tt.from), func(t *testing.T) {
			ctx := context.Background()
			engine, store := engineFixture(t)
			require.NoError(t, store.SetContentStatus(ctx, TargetPost, "post-1", tt.from))

			res := engine.TakeAction(ctx, ActionRequest{
				ModeratorID: "mod-1",
				Type:        tt.action,
				TargetType:  TargetPost,
				TargetID:    "post-1",
				Reason:      "rule violation",
			})
			require.True(t, res.OK, "message: %s", res.Message)
			assert.Equal(t, tt.want, res.ContentStatus)
			assert.Equal(t, tt.want, store.contentStatus(TargetPost, "post-1"))
			assert.NotEmpty(t, res.ActionID)
		})
	}
}

func TestTakeActionValidation(t *testing.T) {
	ctx := context.Background()
	engine, _ := engineFixture(t)

	res := engine.TakeAction(ctx, ActionRequest{ModeratorID: "mod-1", Type: "obliterate", TargetType: TargetPost, TargetID: "post-1"})
	assert.Equal(t, CodeInvalid, res.Code)

	// Warn and delete refuse to proceed without a reason; nothing is written.
	for _, a := range []ActionType{ActionWarn, ActionDelete} {
		res = engine.TakeAction(ctx, ActionRequest{ModeratorID: "mod-1", Type: a, TargetType: TargetPost, TargetID: "post-1"})
		assert.Equal(t, CodeInvalid, res.Code, "%s without reason", a)
	}

	res = engine.TakeAction(ctx, ActionRequest{ModeratorID: "mod-1", Type: ActionHide})
	assert.Equal(t, CodeInvalid, res.Code, "no report and no target")
}

func TestTakeActionReasonValidatedBeforeAnyWrite(t *testing.T) {
	ctx := context.Background()
	engine, store := engineFixture(t)

	res := engine.TakeAction(ctx, ActionRequest{ModeratorID: "mod-1", Type: ActionDelete, TargetType: TargetPost, TargetID: "post-1"})
	require.False(t, res.OK)

	assert.Equal(t, ContentActive, store.contentStatus(TargetPost, "post-1"))
	assert.Zero(t, store.actionCount(), "no audit record for a rejected action")
}

func TestTakeActionUnauthorized(t *testing.T) {
	ctx := context.Background()
	engine, store := engineFixture(t)

	// A plain member, even one who filed the report, cannot act.
	res := engine.TakeAction(ctx, ActionRequest{ModeratorID: "rando", Type: ActionHide, TargetType: TargetPost, TargetID: "post-1"})
	assert.Equal(t, CodeUnauthorized, res.Code)
	assert.Equal(t, ContentActive, store.contentStatus(TargetPost, "post-1"))
	assert.Zero(t, store.actionCount())

	// A moderator of a different community cannot act here either.
	require.NoError(t, store.GrantGlobalRole(ctx, "mod-2", RoleModerator))
	require.NoError(t, store.GrantCommunityRole(ctx, "mod-2", "cooking", CommunityRoleModerator))
	res = engine.TakeAction(ctx, ActionRequest{ModeratorID: "mod-2", Type: ActionHide, TargetType: TargetPost, TargetID: "post-1"})
	assert.Equal(t, CodeUnauthorized, res.Code)
}

func TestTakeActionAdminActsAnywhere(t *testing.T) {
	ctx := context.Background()
	engine, store := engineFixture(t)
	require.NoError(t, store.GrantGlobalRole(ctx, "root", RoleAdmin))

	res := engine.TakeAction(ctx, ActionRequest{ModeratorID: "root", Type: ActionHide, TargetType: TargetPost, TargetID: "post-1"})
	assert.True(t, res.OK)
}

func TestTakeActionNotFound(t *testing.T) {
	ctx := context.Background()
	engine, _ := engineFixture(t)

	res := engine.TakeAction(ctx, ActionRequest{ModeratorID: "mod-1", Type: ActionHide, ReportID: "missing"})
	assert.Equal(t, CodeNotFound, res.Code)

	res = engine.TakeAction(ctx, ActionRequest{ModeratorID: "mod-1", Type: ActionHide, TargetType: TargetPost, TargetID: "missing"})
	assert.Equal(t, CodeNotFound, res.Code)
}

func TestTakeActionResolvesDrivingReportOnly(t *testing.T) {
	ctx := context.Background()
	engine, store := engineFixture(t)
	mgr := NewReportManager(store, nil)

	driving, res := mgr.Create(ctx, "alice", TargetPost, "post-1", "gardening", "spam")
	require.True(t, res.OK)
	other, res := mgr.Create(ctx, "bob", TargetPost, "post-1", "gardening", "also spam")
	require.True(t, res.OK)

	ar := engine.TakeAction(ctx, ActionRequest{ModeratorID: "mod-1", Type: ActionHide, ReportID: driving.ID})
	require.True(t, ar.OK)
	assert.True(t, ar.ReportResolved)
	assert.Equal(t, ContentFlagged, ar.ContentStatus)

	stored, err := store.GetReport(ctx, driving.ID)
	require.NoError(t, err)
	assert.Equal(t, ReportResolved, stored.Status)
	assert.Equal(t, "mod-1", stored.ResolvedBy)

	// Sibling reports on the same target stay pending.
	sibling, err := store.GetReport(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, ReportPending, sibling.Status)
}

func TestTakeActionDismissClosesReportAsDismissed(t *testing.T) {
	ctx := context.Background()
	engine, store := engineFixture(t)
	mgr := NewReportManager(store, nil)

	report, res := mgr.Create(ctx, "alice", TargetPost, "post-1", "gardening", "spam")
	require.True(t, res.OK)

	ar := engine.TakeAction(ctx, ActionRequest{ModeratorID: "mod-1", Type: ActionDismiss, ReportID: report.ID})
	require.True(t, ar.OK)
	assert.True(t, ar.ReportResolved)
	assert.Equal(t, ContentActive, ar.ContentStatus, "dismiss leaves content untouched")
	assert.Equal(t, ContentActive, store.contentStatus(TargetPost, "post-1"))

	stored, err := store.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, ReportDismissed, stored.Status)
}

func TestTakeActionDirectLeavesReportsPending(t *testing.T) {
	ctx := context.Background()
	engine, store := engineFixture(t)
	mgr := NewReportManager(store, nil)

	report, res := mgr.Create(ctx, "alice", TargetPost, "post-1", "gardening", "spam")
	require.True(t, res.OK)

	// Proactive action without a report id.
	ar := engine.TakeAction(ctx, ActionRequest{ModeratorID: "mod-1", Type: ActionDelete, TargetType: TargetPost, TargetID: "post-1", Reason: "rules"})
	require.True(t, ar.OK)
	assert.False(t, ar.ReportResolved)

	stored, err := store.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, ReportPending, stored.Status, "direct actions never touch report rows")
}

func TestTakeActionIdempotentReapply(t *testing.T) {
	ctx := context.Background()
	engine, store := engineFixture(t)

	req := ActionRequest{ModeratorID: "mod-1", Type: ActionDelete, TargetType: TargetPost, TargetID: "post-1", Reason: "rules"}

	first := engine.TakeAction(ctx, req)
	require.True(t, first.OK)
	second := engine.TakeAction(ctx, req)
	require.True(t, second.OK, "re-applying to already-deleted content is not an error")

	assert.Equal(t, ContentDeleted, store.contentStatus(TargetPost, "post-1"))
	assert.NotEqual(t, first.ActionID, second.ActionID)
	assert.Equal(t, 2, store.actionCount(), "each execution appends its own audit record")
}

func TestTakeActionAuditFailureFailsAction(t *testing.T) {
	ctx := context.Background()
	engine, store := engineFixture(t)
	store.failAppendAction = true

	res := engine.TakeAction(ctx, ActionRequest{ModeratorID: "mod-1", Type: ActionHide, TargetType: TargetPost, TargetID: "post-1"})
	require.False(t, res.OK)
	assert.Equal(t, CodeStoreError, res.Code)

	// Without transactions the status flip has already landed; the failure
	// carries a warning so the operator knows the stores disagree.
	assert.Equal(t, ContentFlagged, store.contentStatus(TargetPost, "post-1"))
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "audit record failed")
}

func TestTakeActionStatusFailureStopsBeforeAudit(t *testing.T) {
	ctx := context.Background()
	engine, store := engineFixture(t)
	store.failSetStatus = true

	res := engine.TakeAction(ctx, ActionRequest{ModeratorID: "mod-1", Type: ActionHide, TargetType: TargetPost, TargetID: "post-1"})
	require.False(t, res.OK)
	assert.Equal(t, CodeStoreError, res.Code)
	assert.Zero(t, store.actionCount(), "audit append never runs after a failed status update")
}

func TestTakeActionReportUpdateFailureIsWarning(t *testing.T) {
	ctx := context.Background()
	engine, store := engineFixture(t)
	mgr := NewReportManager(store, nil)

	report, res := mgr.Create(ctx, "alice", TargetPost, "post-1", "gardening", "spam")
	require.True(t, res.OK)

	store.failResolveReport = true
	ar := engine.TakeAction(ctx, ActionRequest{ModeratorID: "mod-1", Type: ActionHide, ReportID: report.ID})
	require.True(t, ar.OK, "report bookkeeping failure never fails the action")
	assert.False(t, ar.ReportResolved)
	require.Len(t, ar.Warnings, 1)
	assert.Contains(t, ar.Warnings[0], "report status update failed")

	assert.Equal(t, ContentFlagged, store.contentStatus(TargetPost, "post-1"))
	assert.Equal(t, 1, store.actionCount())
}

func TestTakeActionAlreadyClosedReportIsWarning(t *testing.T) {
	ctx := context.Background()
	engine, store := engineFixture(t)
	mgr := NewReportManager(store, nil)

	report, res := mgr.Create(ctx, "alice", TargetPost, "post-1", "gardening", "spam")
	require.True(t, res.OK)
	require.True(t, mgr.Resolve(ctx, report.ID, ReportDismissed, "mod-9").OK)

	ar := engine.TakeAction(ctx, ActionRequest{ModeratorID: "mod-1", Type: ActionHide, ReportID: report.ID})
	require.True(t, ar.OK)
	assert.False(t, ar.ReportResolved)
	require.Len(t, ar.Warnings, 1)
	assert.Contains(t, ar.Warnings[0], "already closed")

	// The earlier terminal status stands.
	stored, err := store.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, ReportDismissed, stored.Status)
}

func TestTakeActionPublishesEvent(t *testing.T) {
	ctx := context.Background()
	_, store := engineFixture(t)
	notifier := NewNotifier()
	ch := notifier.Subscribe("dash-1", nil)

	engine := NewEngine(store, newTestResolver(t, store), notifier)
	res := engine.TakeAction(ctx, ActionRequest{ModeratorID: "mod-1", Type: ActionHide, TargetType: TargetPost, TargetID: "post-1"})
	require.True(t, res.OK)

	select {
	case ev := <-ch:
		assert.Equal(t, EventAction, ev.Kind)
		assert.Equal(t, ActionHide, ev.ActionType)
		assert.Equal(t, res.ActionID, ev.ActionID)
		assert.Equal(t, "gardening", ev.CommunityID)
	default:
		t.Fatal("expected an action event")
	}
}

func TestAuditTrail(t *testing.T) {
	ctx := context.Background()
	engine, store := engineFixture(t)
	require.NoError(t, store.PutContent(ctx, Content{Type: TargetPost, ID: "post-2", CommunityID: "gardening", Status: ContentActive}))

	require.True(t, engine.TakeAction(ctx, ActionRequest{ModeratorID: "mod-1", Type: ActionHide, TargetType: TargetPost, TargetID: "post-1"}).OK)
	require.True(t, engine.TakeAction(ctx, ActionRequest{ModeratorID: "mod-1", Type: ActionDelete, TargetType: TargetPost, TargetID: "post-2", Reason: "rules"}).OK)
	require.True(t, engine.TakeAction(ctx, ActionRequest{ModeratorID: "mod-1", Type: ActionApprove, TargetType: TargetPost, TargetID: "post-1"}).OK)

	trail, err := engine.AuditTrail(ctx, TargetPost, "post-1", 0)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, ActionApprove, trail[0].Type, "newest first")
	assert.Equal(t, ActionHide, trail[1].Type)

	recent, err := engine.RecentAuditLog(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 3)
}

func TestAuditLimitsClamped(t *testing.T) {
	ctx := context.Background()
	engine, store := engineFixture(t)

	_, err := engine.AuditTrail(ctx, TargetPost, "post-1", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultAuditLimit, store.lastActionsLimit)

	_, err = engine.AuditTrail(ctx, TargetPost, "post-1", 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, MaxAuditLimit, store.lastActionsLimit, "oversized limits never reach the store")

	_, err = engine.RecentAuditLog(ctx, -5)
	require.NoError(t, err)
	assert.Equal(t, DefaultAuditLimit, store.lastActionsLimit)

	_, err = engine.RecentAuditLog(ctx, MaxAuditLimit+1)
	require.NoError(t, err)
	assert.Equal(t, MaxAuditLimit, store.lastActionsLimit)

	_, err = engine.RecentAuditLog(ctx, 25)
	require.NoError(t, err)
	assert.Equal(t, 25, store.lastActionsLimit, "in-range limits pass through")
}

func TestTransitionTable(t *testing.T) {
	status, mutate := transition(ActionDismiss, ContentFlagged)
	assert.Equal(t, ContentFlagged, status)
	assert.False(t, mutate)

	status, mutate = transition(ActionWarn, ContentDeleted)
	assert.Equal(t, ContentFlagged, status)
	assert.True(t, mutate)
}
