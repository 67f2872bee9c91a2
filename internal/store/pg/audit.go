package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stafflane/access/internal/audit"
	"github.com/stafflane/access/internal/ids"
)

const defaultAuditPageSize = 50

var _ audit.Store = (*Store)(nil)

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	metaJSON := []byte("{}")
	if len(entry.Metadata) > 0 {
		bytes, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		metaJSON = bytes
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_logs (id, organization_id, actor_user_id, actor_employee_id, action, resource, resource_id, status, ip, user_agent, request_id, metadata, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		entry.ID,
		nullIfEmpty(entry.OrganizationID),
		nullIfEmpty(entry.ActorUserID),
		nullIfEmpty(entry.ActorEmployeeID),
		entry.Action,
		nullIfEmpty(entry.Resource),
		nullIfEmpty(entry.ResourceID),
		entry.Status,
		nullIfEmpty(entry.IP),
		nullIfEmpty(entry.UserAgent),
		nullIfEmpty(entry.RequestID),
		metaJSON,
		entry.CreatedAt,
	)
	return err
}

func (s *Store) List(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}

	var (
		where []string
		args  []any
		idx   = 1
	)
	add := func(clause string, value any) {
		where = append(where, fmt.Sprintf(clause, idx))
		args = append(args, value)
		idx++
	}
	if filter.OrganizationID != "" {
		add("organization_id = $%d", filter.OrganizationID)
	}
	if filter.ActorUserID != "" {
		add("actor_user_id = $%d", filter.ActorUserID)
	}
	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if filter.Resource != "" {
		add("resource = $%d", filter.Resource)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if !filter.Since.IsZero() {
		add("created_at >= $%d", filter.Since)
	}
	if !filter.Until.IsZero() {
		add("created_at < $%d", filter.Until)
	}

	query := `
		select id, coalesce(organization_id, ''), coalesce(actor_user_id, ''), coalesce(actor_employee_id, ''),
		       action, coalesce(resource, ''), coalesce(resource_id, ''), status,
		       coalesce(ip, ''), coalesce(user_agent, ''), coalesce(request_id, ''), metadata, created_at
		from audit_logs
	`
	if len(where) > 0 {
		query += " where " + strings.Join(where, " and ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditPageSize
	}
	query += fmt.Sprintf(" order by created_at desc limit $%d offset $%d", idx, idx+1)
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			entry   audit.Entry
			rawMeta []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.OrganizationID,
			&entry.ActorUserID,
			&entry.ActorEmployeeID,
			&entry.Action,
			&entry.Resource,
			&entry.ResourceID,
			&entry.Status,
			&entry.IP,
			&entry.UserAgent,
			&entry.RequestID,
			&rawMeta,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(rawMeta) > 0 {
			if err := json.Unmarshal(rawMeta, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from audit_logs where created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
