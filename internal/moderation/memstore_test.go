package moderation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// memStore is an in-memory Store used by the core tests. Failure flags let
// tests exercise fail-closed and partial-failure paths without a backend.
type memStore struct {
	mu             sync.Mutex
	globalRoles    map[string][]GlobalRole
	communityRoles map[string]CommunityRole
	content        map[string]Content
	reports        map[string]Report
	actions        []Action

	failGlobalRoles   bool
	failCommunityRole bool
	failSetStatus     bool
	failAppendAction  bool
	failResolveReport bool
	noopResolveReport bool

	lastActionsLimit int
}

func newMemStore() *memStore {
	return &memStore{
		globalRoles:    make(map[string][]GlobalRole),
		communityRoles: make(map[string]CommunityRole),
		content:        make(map[string]Content),
		reports:        make(map[string]Report),
	}
}

var errInjected = errors.New("injected store failure")

func (s *memStore) GlobalRoles(ctx context.Context, userID string) ([]GlobalRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGlobalRoles {
		return nil, errInjected
	}
	return append([]GlobalRole(nil), s.globalRoles[userID]...), nil
}

func (s *memStore) GrantGlobalRole(ctx context.Context, userID string, role GlobalRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.globalRoles[userID] {
		if r == role {
			return nil
		}
	}
	s.globalRoles[userID] = append(s.globalRoles[userID], role)
	return nil
}

func (s *memStore) CommunityRole(ctx context.Context, userID, communityID string) (CommunityRole, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCommunityRole {
		return "", false, errInjected
	}
	role, found := s.communityRoles[userID+":"+communityID]
	return role, found, nil
}

func (s *memStore) GrantCommunityRole(ctx context.Context, userID, communityID string, role CommunityRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.communityRoles[userID+":"+communityID] = role
	return nil
}

func (s *memStore) RevokeCommunityRole(ctx context.Context, userID, communityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.communityRoles, userID+":"+communityID)
	return nil
}

func (s *memStore) GetContent(ctx context.Context, t TargetType, id string) (*Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, found := s.content[string(t)+":"+id]
	if !found {
		return nil, nil
	}
	return &c, nil
}

func (s *memStore) PutContent(ctx context.Context, c Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content[string(c.Type)+":"+c.ID] = c
	return nil
}

func (s *memStore) SetContentStatus(ctx context.Context, t TargetType, id string, status ContentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSetStatus {
		return errInjected
	}
	key := string(t) + ":" + id
	c, found := s.content[key]
	if !found {
		return errors.New("content not found")
	}
	c.Status = status
	s.content[key] = c
	return nil
}

func (s *memStore) CreateReport(ctx context.Context, report Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.ID] = report
	return nil
}

func (s *memStore) GetReport(ctx context.Context, id string) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, found := s.reports[id]
	if !found {
		return nil, nil
	}
	return &r, nil
}

func (s *memStore) ListReports(ctx context.Context, f ReportFilter) ([]Report, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []Report
	for _, r := range s.reports {
		if f.CommunityID != "" && r.CommunityID != f.CommunityID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if f.PageSize <= 0 {
		return matched, total, nil
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	start := (page - 1) * f.PageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + f.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *memStore) ResolveReport(ctx context.Context, id string, status ReportStatus, resolvedBy string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failResolveReport {
		return false, errInjected
	}
	if s.noopResolveReport {
		return false, nil
	}
	r, found := s.reports[id]
	if !found || r.Status != ReportPending {
		return false, nil
	}
	r.Status = status
	r.ResolvedBy = resolvedBy
	now := time.Now()
	r.ResolvedAt = &now
	s.reports[id] = r
	return true, nil
}

func (s *memStore) CountReportsByReporterSince(ctx context.Context, reporterID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, r := range s.reports {
		if r.ReporterID == reporterID && r.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (s *memStore) AppendAction(ctx context.Context, action Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppendAction {
		return errInjected
	}
	s.actions = append(s.actions, action)
	return nil
}

func (s *memStore) ListActionsForTarget(ctx context.Context, t TargetType, id string, limit int) ([]Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActionsLimit = limit
	var actions []Action
	for i := len(s.actions) - 1; i >= 0 && len(actions) < limit; i-- {
		a := s.actions[i]
		if a.TargetType == t && a.TargetID == id {
			actions = append(actions, a)
		}
	}
	return actions, nil
}

func (s *memStore) RecentActions(ctx context.Context, limit int) ([]Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActionsLimit = limit
	var actions []Action
	for i := len(s.actions) - 1; i >= 0 && len(actions) < limit; i-- {
		actions = append(actions, s.actions[i])
	}
	return actions, nil
}

func (s *memStore) actionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actions)
}

func (s *memStore) contentStatus(t TargetType, id string) ContentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content[string(t)+":"+id].Status
}
