package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/google/uuid"
)

// RecordActivity appends an event to the activity log, assigning its ID
// and timestamp when they are unset.
func (s *SQLiteStorage) RecordActivity(ctx context.Context, event *model.ActivityEvent) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if event == nil {
		return fmt.Errorf("%w: activity event", ErrNilParameter)
	}
	if err := validateString(event.NodeID, "node id"); err != nil {
		return err
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.ChangedFields == nil {
		event.ChangedFields = []string{}
	}

	previous, err := marshalValues(event.PreviousValues)
	if err != nil {
		return fmt.Errorf("failed to encode previous values: %w", err)
	}
	next, err := marshalValues(event.NewValues)
	if err != nil {
		return fmt.Errorf("failed to encode new values: %w", err)
	}
	changed, err := json.Marshal(event.ChangedFields)
	if err != nil {
		return fmt.Errorf("failed to encode changed fields: %w", err)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO activity_log (id, node_type, node_id, action, previous_values, new_values, changed_fields, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, string(event.NodeType), event.NodeID, string(event.Action),
		previous, next, string(changed), nullableString(event.Reason), event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// ListActivity returns the most recent events for ref, newest first.
// A non-positive limit returns every event.
func (s *SQLiteStorage) ListActivity(ctx context.Context, ref model.NodeRef, limit int) ([]model.ActivityEvent, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateRef(ref); err != nil {
		return nil, err
	}

	query := `
		SELECT id, node_type, node_id, action, previous_values, new_values, changed_fields, reason, created_at
		FROM activity_log
		WHERE node_type = ? AND node_id = ?
		ORDER BY created_at DESC, rowid DESC`
	args := []any{string(ref.Type), ref.ID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.ActivityEvent
	for rows.Next() {
		var (
			e                model.ActivityEvent
			nodeType, action string
			previous, next   sql.NullString
			changed          string
			reason           sql.NullString
		)
		if err := rows.Scan(&e.ID, &nodeType, &e.NodeID, &action, &previous, &next, &changed, &reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		e.NodeType = model.NodeType(nodeType)
		e.Action = model.ActivityAction(action)
		e.Reason = reason.String
		if e.PreviousValues, err = unmarshalValues(previous); err != nil {
			return nil, fmt.Errorf("failed to decode previous values: %w", err)
		}
		if e.NewValues, err = unmarshalValues(next); err != nil {
			return nil, fmt.Errorf("failed to decode new values: %w", err)
		}
		if err := json.Unmarshal([]byte(changed), &e.ChangedFields); err != nil {
			return nil, fmt.Errorf("failed to decode changed fields: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity: %w", err)
	}

	return events, nil
}

func marshalValues(values map[string]any) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func unmarshalValues(raw sql.NullString) (map[string]any, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var values map[string]any
	if err := json.Unmarshal([]byte(raw.String), &values); err != nil {
		return nil, err
	}
	return values, nil
}
