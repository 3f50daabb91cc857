package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
	"github.com/m04kA/SMC-TourBookingService/pkg/dbmetrics"
	"github.com/m04kA/SMC-TourBookingService/pkg/psqlbuilder"
)

type DBExecutor = dbmetrics.DBExecutor

const savepoint = "audit_event"

// Repository append-only журнал аудита
type Repository struct {
	db DBExecutor
	sb psqlbuilder.Builder
}

// NewRepository создает новый экземпляр репозитория аудита
func NewRepository(db DBExecutor, sb psqlbuilder.Builder) *Repository {
	return &Repository{db: db, sb: sb}
}

// Record пишет событие аудита.
// Внутри транзакции вставка идет под SAVEPOINT: ошибка откатывает только саму запись,
// и транзакция операции остается рабочей.
func (r *Repository) Record(ctx context.Context, event domain.AuditEvent) error {
	before, err := marshalPayload(event.Before)
	if err != nil {
		return err
	}
	after, err := marshalPayload(event.After)
	if err != nil {
		return err
	}

	query, args, err := r.sb.Insert("audit_events").
		Columns("trace_id", "actor", "action", "entity_type", "entity_id", "before_data", "after_data", "created_at").
		Values(event.TraceID, event.Actor, event.Action, event.EntityType, event.EntityID, before, after, event.CreatedAt.UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: Record - build insert query: %w", ErrBuildQuery, err)
	}

	executor := dbmetrics.GetExecutor(ctx, r.db)
	if !dbmetrics.IsInTransaction(ctx) {
		if _, err := executor.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("%w: Record - execute insert: %w", ErrExecQuery, err)
		}
		return nil
	}

	if _, err := executor.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
		return fmt.Errorf("%w: Record - savepoint: %w", ErrExecQuery, err)
	}
	if _, err := executor.ExecContext(ctx, query, args...); err != nil {
		if _, rbErr := executor.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
			return fmt.Errorf("%w: Record - execute insert: %w (rollback to savepoint: %w)", ErrExecQuery, err, rbErr)
		}
		_, _ = executor.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint)
		return fmt.Errorf("%w: Record - execute insert: %w", ErrExecQuery, err)
	}
	if _, err := executor.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
		return fmt.Errorf("%w: Record - release savepoint: %w", ErrExecQuery, err)
	}
	return nil
}

// ListByEntity события сущности в порядке записи
func (r *Repository) ListByEntity(ctx context.Context, entityType string, entityID int64) ([]*domain.AuditEvent, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := r.sb.Select("id", "trace_id", "actor", "action", "entity_type", "entity_id", "before_data", "after_data", "created_at").
		From("audit_events").
		Where(squirrel.Eq{"entity_type": entityType, "entity_id": entityID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: ListByEntity - build select query: %w", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: ListByEntity - execute select: %w", ErrExecQuery, err)
	}
	defer rows.Close()

	events := make([]*domain.AuditEvent, 0)
	for rows.Next() {
		var (
			ev            domain.AuditEvent
			before, after sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.TraceID, &ev.Actor, &ev.Action, &ev.EntityType, &ev.EntityID, &before, &after, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: ListByEntity - scan event: %w", ErrScanRow, err)
		}
		if ev.Before, err = unmarshalPayload(before); err != nil {
			return nil, fmt.Errorf("%w: ListByEntity - decode before: %w", ErrScanRow, err)
		}
		if ev.After, err = unmarshalPayload(after); err != nil {
			return nil, fmt.Errorf("%w: ListByEntity - decode after: %w", ErrScanRow, err)
		}
		ev.CreatedAt = ev.CreatedAt.UTC()
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: ListByEntity - iterate rows: %w", ErrScanRow, err)
	}
	return events, nil
}

// marshalPayload возвращает строку: lib/pq передает []byte как bytea, а колонка JSONB
func marshalPayload(payload map[string]interface{}) (interface{}, error) {
	if payload == nil {
		return nil, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMarshalPayload, err)
	}
	return string(raw), nil
}

func unmarshalPayload(raw sql.NullString) (map[string]interface{}, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(raw.String), &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
