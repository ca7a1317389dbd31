package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/veranda-social/veranda/internal/moderation"

	bolt "go.etcd.io/bbolt"
)

// ModerationStore provides persistent storage for moderation data.
// When tx is non-nil the store is bound to that transaction; otherwise each
// operation runs in its own bolt transaction.
type ModerationStore struct {
	db *bolt.DB
	tx *bolt.Tx
}

// Ensure interface conformance at compile time.
var (
	_ moderation.Store   = (*ModerationStore)(nil)
	_ moderation.TxStore = (*ModerationStore)(nil)
)

func (s *ModerationStore) update(fn func(tx *bolt.Tx) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	return s.db.Update(fn)
}

func (s *ModerationStore) view(fn func(tx *bolt.Tx) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	return s.db.View(fn)
}

// WithinTx runs fn against a transaction-bound store. All writes commit or
// roll back together.
func (s *ModerationStore) WithinTx(ctx context.Context, fn func(moderation.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&ModerationStore{db: s.db, tx: tx})
	})
}

// ========== Roles ==========

// GlobalRoles returns all global role assignments for a user.
// An unknown user yields an empty set, not an error.
func (s *ModerationStore) GlobalRoles(ctx context.Context, userID string) ([]moderation.GlobalRole, error) {
	var roles []moderation.GlobalRole

	err := s.view(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketGlobalRoles)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(userID))
		if data == nil {
			return nil
		}

		return json.Unmarshal(data, &roles)
	})

	return roles, err
}

// GrantGlobalRole adds a global role assignment, ignoring duplicates.
func (s *ModerationStore) GrantGlobalRole(ctx context.Context, userID string, role moderation.GlobalRole) error {
	return s.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketGlobalRoles)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketGlobalRoles)
		}

		var roles []moderation.GlobalRole
		if data := bucket.Get([]byte(userID)); data != nil {
			if err := json.Unmarshal(data, &roles); err != nil {
				return err
			}
		}
		for _, r := range roles {
			if r == role {
				return nil
			}
		}
		roles = append(roles, role)

		data, err := json.Marshal(roles)
		if err != nil {
			return fmt.Errorf("failed to marshal roles: %w", err)
		}
		return bucket.Put([]byte(userID), data)
	})
}

func communityRoleKey(userID, communityID string) []byte {
	return []byte(userID + ":" + communityID)
}

// CommunityRole returns a user's role within one community.
func (s *ModerationStore) CommunityRole(ctx context.Context, userID, communityID string) (moderation.CommunityRole, bool, error) {
	var role moderation.CommunityRole
	var found bool

	err := s.view(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketCommunityRoles)
		if bucket == nil {
			return nil
		}

		if data := bucket.Get(communityRoleKey(userID, communityID)); data != nil {
			role = moderation.CommunityRole(data)
			found = true
		}
		return nil
	})

	return role, found, err
}

// GrantCommunityRole sets a user's role within one community.
func (s *ModerationStore) GrantCommunityRole(ctx context.Context, userID, communityID string, role moderation.CommunityRole) error {
	return s.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketCommunityRoles)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketCommunityRoles)
		}
		return bucket.Put(communityRoleKey(userID, communityID), []byte(role))
	})
}

// RevokeCommunityRole removes a user's role within one community.
func (s *ModerationStore) RevokeCommunityRole(ctx context.Context, userID, communityID string) error {
	return s.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketCommunityRoles)
		if bucket == nil {
			return nil
		}
		return bucket.Delete(communityRoleKey(userID, communityID))
	})
}

// ========== Content ==========

func contentKey(t moderation.TargetType, id string) []byte {
	return []byte(string(t) + ":" + id)
}

// GetContent retrieves a content row by target type and id.
func (s *ModerationStore) GetContent(ctx context.Context, t moderation.TargetType, id string) (*moderation.Content, error) {
	var content *moderation.Content

	err := s.view(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketContent)
		if bucket == nil {
			return nil
		}

		data := bucket.Get(contentKey(t, id))
		if data == nil {
			return nil
		}

		content = &moderation.Content{}
		return json.Unmarshal(data, content)
	})

	return content, err
}

// PutContent stores a content row.
func (s *ModerationStore) PutContent(ctx context.Context, c moderation.Content) error {
	return s.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketContent)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketContent)
		}

		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal content: %w", err)
		}
		return bucket.Put(contentKey(c.Type, c.ID), data)
	})
}

// SetContentStatus updates the visibility status of a content row.
func (s *ModerationStore) SetContentStatus(ctx context.Context, t moderation.TargetType, id string, status moderation.ContentStatus) error {
	return s.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketContent)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketContent)
		}

		data := bucket.Get(contentKey(t, id))
		if data == nil {
			return fmt.Errorf("content not found: %s/%s", t, id)
		}

		var content moderation.Content
		if err := json.Unmarshal(data, &content); err != nil {
			return err
		}
		content.Status = status

		newData, err := json.Marshal(content)
		if err != nil {
			return err
		}
		return bucket.Put(contentKey(t, id), newData)
	})
}

// ========== Reports ==========

// CreateReport stores a new report keyed by its id. Listings filter with a
// bucket scan; report volume is moderator-queue sized, not feed sized.
func (s *ModerationStore) CreateReport(ctx context.Context, report moderation.Report) error {
	return s.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketReports)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketReports)
		}

		data, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}

		return bucket.Put([]byte(report.ID), data)
	})
}

// GetReport retrieves a report by ID.
func (s *ModerationStore) GetReport(ctx context.Context, id string) (*moderation.Report, error) {
	var report *moderation.Report

	err := s.view(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketReports)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return nil
		}

		report = &moderation.Report{}
		return json.Unmarshal(data, report)
	})

	return report, err
}

func matchesFilter(r moderation.Report, f moderation.ReportFilter) bool {
	if f.CommunityID != "" && r.CommunityID != f.CommunityID {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(r.Reason), needle) &&
			!strings.Contains(strings.ToLower(r.TargetID), needle) &&
			!strings.Contains(strings.ToLower(r.ReporterID), needle) {
			return false
		}
	}
	return true
}

// ListReports returns reports matching the filter, newest first, plus the
// total match count. A zero PageSize returns all matching rows.
func (s *ModerationStore) ListReports(ctx context.Context, f moderation.ReportFilter) ([]moderation.Report, int, error) {
	var matched []moderation.Report

	err := s.view(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketReports)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var report moderation.Report
			if err := json.Unmarshal(v, &report); err != nil {
				return nil // Skip malformed entries
			}
			if matchesFilter(report, f) {
				matched = append(matched, report)
			}
			return nil
		})
	})
	if err != nil {
		return nil, 0, err
	}

	sort.SliceStable(matched, func(i, j int) bool {
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

// ResolveReport transitions a pending report to a terminal status. Returns
// false when the report is missing or already closed.
func (s *ModerationStore) ResolveReport(ctx context.Context, id string, status moderation.ReportStatus, resolvedBy string) (bool, error) {
	var updated bool

	err := s.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketReports)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketReports)
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return nil
		}

		var report moderation.Report
		if err := json.Unmarshal(data, &report); err != nil {
			return err
		}
		if report.Status != moderation.ReportPending {
			return nil
		}

		report.Status = status
		report.ResolvedBy = resolvedBy
		now := time.Now()
		report.ResolvedAt = &now

		newData, err := json.Marshal(report)
		if err != nil {
			return err
		}
		if err := bucket.Put([]byte(id), newData); err != nil {
			return err
		}
		updated = true
		return nil
	})

	return updated, err
}

// CountReportsByReporterSince counts reports filed by one reporter after the
// given time. Used for rate limiting report submissions.
func (s *ModerationStore) CountReportsByReporterSince(ctx context.Context, reporterID string, since time.Time) (int, error) {
	var count int

	err := s.view(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketReports)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var report moderation.Report
			if err := json.Unmarshal(v, &report); err != nil {
				return nil // Skip malformed entries
			}
			if report.ReporterID == reporterID && report.CreatedAt.After(since) {
				count++
			}
			return nil
		})
	})

	return count, err
}

// CountPendingReports returns the number of reports awaiting review.
func (s *ModerationStore) CountPendingReports(ctx context.Context) (int, error) {
	var count int

	err := s.view(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketReports)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var report moderation.Report
			if err := json.Unmarshal(v, &report); err != nil {
				return nil // Skip malformed entries
			}
			if report.Status == moderation.ReportPending {
				count++
			}
			return nil
		})
	})

	return count, err
}

// ========== Audit Log ==========

// AppendAction stores a moderation action in the append-only audit log.
// Timestamp-based keys keep entries in chronological order.
func (s *ModerationStore) AppendAction(ctx context.Context, action moderation.Action) error {
	return s.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketActions)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketActions)
		}

		data, err := json.Marshal(action)
		if err != nil {
			return fmt.Errorf("failed to marshal action: %w", err)
		}

		key := fmt.Sprintf("%020d:%s", action.CreatedAt.UnixNano(), action.ID)
		return bucket.Put([]byte(key), data)
	})
}

// ListActionsForTarget returns the most recent audit records for one target,
// newest first.
func (s *ModerationStore) ListActionsForTarget(ctx context.Context, t moderation.TargetType, id string, limit int) ([]moderation.Action, error) {
	var actions []moderation.Action

	err := s.view(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketActions)
		if bucket == nil {
			return nil
		}

		cursor := bucket.Cursor()
		for k, v := cursor.Last(); k != nil && len(actions) < limit; k, v = cursor.Prev() {
			var action moderation.Action
			if err := json.Unmarshal(v, &action); err != nil {
				continue
			}
			if action.TargetType == t && action.TargetID == id {
				actions = append(actions, action)
			}
		}
		return nil
	})

	return actions, err
}

// RecentActions returns the most recent audit records, newest first.
func (s *ModerationStore) RecentActions(ctx context.Context, limit int) ([]moderation.Action, error) {
	var actions []moderation.Action

	err := s.view(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketActions)
		if bucket == nil {
			return nil
		}

		cursor := bucket.Cursor()
		for k, v := cursor.Last(); k != nil && len(actions) < limit; k, v = cursor.Prev() {
			var action moderation.Action
			if err := json.Unmarshal(v, &action); err != nil {
				continue
			}
			actions = append(actions, action)
		}
		return nil
	})

	return actions, err
}

// CountActions returns the total number of audit records.
func (s *ModerationStore) CountActions(ctx context.Context) (int, error) {
	var count int

	err := s.view(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketActions)
		if bucket == nil {
			return nil
		}
		count = bucket.Stats().KeyN
		return nil
	})

	return count, err
}
