package stores

import (
	"context"
	"encoding/json"

	"github.com/oarkflow/squealx"
	"github.com/ticketops/access"
)

// SQLAuditLogStore persists mutation audit entries in SQL (squealx)
type SQLAuditLogStore struct {
	db *squealx.DB
}

func NewSQLAuditLogStore(db *squealx.DB) *SQLAuditLogStore {
	return &SQLAuditLogStore{db: db}
}

func (s *SQLAuditLogStore) AppendEntry(ctx context.Context, e *access.MutationAuditEntry) error {
	changesB, _ := json.Marshal(e.Changes)
	q := `INSERT INTO mutation_audit(id, entity_type, entity_id, action, performed_by, changes_json, reason, severity, timestamp, ip, user_agent) VALUES(:id, :entity_type, :entity_id, :action, :performed_by, :changes_json, :reason, :severity, :timestamp, :ip, :user_agent)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":           e.ID,
		"entity_type":  string(e.EntityType),
		"entity_id":    e.EntityID,
		"action":       string(e.Action),
		"performed_by": e.PerformedBy,
		"changes_json": string(changesB),
		"reason":       e.Reason,
		"severity":     string(e.Severity),
		"timestamp":    e.Timestamp,
		"ip":           e.IP,
		"user_agent":   e.UserAgent,
	})
	return err
}

func (s *SQLAuditLogStore) RecentEntries(ctx context.Context, limit int) ([]*access.MutationAuditEntry, error) {
	if limit <= 0 {
		limit = access.DefaultLogCap
	}
	q := `SELECT id, entity_type, entity_id, action, performed_by, changes_json, reason, severity, timestamp, ip, user_agent FROM mutation_audit ORDER BY seq DESC LIMIT :limit`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"limit": limit})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*access.MutationAuditEntry, 0)
	for r.Next() {
		var id, entityType, entityID, action, performedBy, changesJSON, reason, severity, ip, userAgent string
		var tsRaw interface{}
		if err := r.Scan(&id, &entityType, &entityID, &action, &performedBy, &changesJSON, &reason, &severity, &tsRaw, &ip, &userAgent); err != nil {
			return nil, err
		}
		e := &access.MutationAuditEntry{
			ID:          id,
			EntityType:  access.EntityType(entityType),
			EntityID:    entityID,
			Action:      access.AuditAction(action),
			PerformedBy: performedBy,
			Reason:      reason,
			Severity:    access.Severity(severity),
			Timestamp:   scanTime(tsRaw),
			IP:          ip,
			UserAgent:   userAgent,
		}
		_ = json.Unmarshal([]byte(changesJSON), &e.Changes)
		out = append(out, e)
	}
	return out, nil
}

func (s *SQLAuditLogStore) TrimEntries(ctx context.Context, keep int) error {
	if keep < 0 {
		return nil
	}
	q := `DELETE FROM mutation_audit WHERE seq NOT IN (SELECT seq FROM mutation_audit ORDER BY seq DESC LIMIT :keep)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"keep": keep})
	return err
}
