package stores

import (
	"context"
	"encoding/json"

	"github.com/oarkflow/squealx"
	"github.com/ticketops/access"
)

// SQLAccessLogStore persists access attempts in SQL (squealx). The seq column
// orders entries so trims keep the newest rows.
type SQLAccessLogStore struct {
	db *squealx.DB
}

func NewSQLAccessLogStore(db *squealx.DB) *SQLAccessLogStore {
	return &SQLAccessLogStore{db: db}
}

func (s *SQLAccessLogStore) AppendAttempt(ctx context.Context, a *access.AccessAttempt) error {
	contextB, _ := json.Marshal(a.Context)
	q := `INSERT INTO access_attempts(id, user_id, resource, action, granted, reason, timestamp, ip, user_agent, context_json) VALUES(:id, :user_id, :resource, :action, :granted, :reason, :timestamp, :ip, :user_agent, :context_json)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":           a.ID,
		"user_id":      a.UserID,
		"resource":     string(a.Resource),
		"action":       string(a.Action),
		"granted":      boolToInt(a.Granted),
		"reason":       a.Reason,
		"timestamp":    a.Timestamp,
		"ip":           a.IP,
		"user_agent":   a.UserAgent,
		"context_json": string(contextB),
	})
	return err
}

func (s *SQLAccessLogStore) RecentAttempts(ctx context.Context, limit int) ([]*access.AccessAttempt, error) {
	if limit <= 0 {
		limit = access.DefaultLogCap
	}
	q := `SELECT id, user_id, resource, action, granted, reason, timestamp, ip, user_agent, context_json FROM access_attempts ORDER BY seq DESC LIMIT :limit`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"limit": limit})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*access.AccessAttempt, 0)
	for r.Next() {
		var id, userID, resource, action, reason, ip, userAgent, contextJSON string
		var grantedInt int
		var tsRaw interface{}
		if err := r.Scan(&id, &userID, &resource, &action, &grantedInt, &reason, &tsRaw, &ip, &userAgent, &contextJSON); err != nil {
			return nil, err
		}
		a := &access.AccessAttempt{
			ID:        id,
			UserID:    userID,
			Resource:  access.ResourceKind(resource),
			Action:    access.ActionVerb(action),
			Granted:   grantedInt != 0,
			Reason:    reason,
			Timestamp: scanTime(tsRaw),
			IP:        ip,
			UserAgent: userAgent,
		}
		_ = json.Unmarshal([]byte(contextJSON), &a.Context)
		out = append(out, a)
	}
	return out, nil
}

func (s *SQLAccessLogStore) TrimAttempts(ctx context.Context, keep int) error {
	if keep < 0 {
		return nil
	}
	q := `DELETE FROM access_attempts WHERE seq NOT IN (SELECT seq FROM access_attempts ORDER BY seq DESC LIMIT :keep)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"keep": keep})
	return err
}
