package slot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
	"github.com/m04kA/SMC-TourBookingService/internal/infra/storage/sqlerr"
	"github.com/m04kA/SMC-TourBookingService/pkg/dbmetrics"
	"github.com/m04kA/SMC-TourBookingService/pkg/psqlbuilder"
)

var slotColumns = []string{
	"id",
	"route_id",
	"starts_at",
	"ends_at",
	"capacity_total",
	"capacity_held",
	"capacity_confirmed",
	"created_at",
	"updated_at",
}

// Repository репозиторий слотов
type Repository struct {
	db DBExecutor
	sb psqlbuilder.Builder
}

// NewRepository создает новый экземпляр репозитория слотов
func NewRepository(db DBExecutor, sb psqlbuilder.Builder) *Repository {
	return &Repository{db: db, sb: sb}
}

// Create создает слот. Слоты заводит каталог, ядро их только читает и меняет счетчики.
func (r *Repository) Create(ctx context.Context, slot *domain.Slot) (*domain.Slot, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := r.sb.Insert("slots").
		Columns(
			"route_id",
			"starts_at",
			"ends_at",
			"capacity_total",
			"capacity_held",
			"capacity_confirmed",
			"created_at",
			"updated_at",
		).
		Values(
			slot.RouteID,
			slot.StartsAt.UTC(),
			slot.EndsAt.UTC(),
			slot.CapacityTotal,
			slot.CapacityHeld,
			slot.CapacityConfirmed,
			slot.CreatedAt.UTC(),
			slot.UpdatedAt.UTC(),
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: Create - build insert query: %w", ErrBuildQuery, err)
	}

	if err := executor.QueryRowContext(ctx, query, args...).Scan(&slot.ID); err != nil {
		if sqlerr.IsCheckViolation(err) {
			return nil, fmt.Errorf("%w: Create: %w", ErrCapacityConstraint, err)
		}
		return nil, fmt.Errorf("%w: Create - execute insert: %w", ErrExecQuery, err)
	}
	return slot, nil
}

// GetByID получает слот по ID без блокировки
func (r *Repository) GetByID(ctx context.Context, id int64) (*domain.Slot, error) {
	q := r.sb.Select(slotColumns...).From("slots").Where(squirrel.Eq{"id": id})
	return r.getOne(ctx, "GetByID", q)
}

// GetByIDForUpdate получает слот с эксклюзивной блокировкой строки.
// Требует открытой транзакции в контексте.
func (r *Repository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Slot, error) {
	if !dbmetrics.IsInTransaction(ctx) {
		return nil, ErrTransactionRequired
	}
	q := r.sb.ForUpdate(r.sb.Select(slotColumns...).From("slots").Where(squirrel.Eq{"id": id}))
	return r.getOne(ctx, "GetByIDForUpdate", q)
}

// UpdateCapacity записывает счетчики мест
func (r *Repository) UpdateCapacity(ctx context.Context, id int64, held, confirmed int, updatedAt time.Time) error {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := r.sb.Update("slots").
		Set("capacity_held", held).
		Set("capacity_confirmed", confirmed).
		Set("updated_at", updatedAt.UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: UpdateCapacity - build update query: %w", ErrBuildQuery, err)
	}

	res, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		if sqlerr.IsCheckViolation(err) {
			return fmt.Errorf("%w: UpdateCapacity slot=%d: %w", ErrCapacityConstraint, id, err)
		}
		return fmt.Errorf("%w: UpdateCapacity - execute update: %w", ErrExecQuery, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// ListAvailable слоты активного маршрута в диапазоне [from, to) с ненулевым остатком мест
func (r *Repository) ListAvailable(ctx context.Context, routeID int64, from, to time.Time) ([]*domain.AvailableSlot, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := r.sb.Select(
		"s.id",
		"s.route_id",
		"s.starts_at",
		"s.ends_at",
		"s.capacity_total",
		"s.capacity_total - s.capacity_held - s.capacity_confirmed",
	).
		From("slots s").
		Join("routes rt ON rt.id = s.route_id").
		Where(squirrel.Eq{"s.route_id": routeID, "rt.active": true}).
		Where(squirrel.GtOrEq{"s.starts_at": from.UTC()}).
		Where(squirrel.Lt{"s.starts_at": to.UTC()}).
		Where("s.capacity_total - s.capacity_held - s.capacity_confirmed > 0").
		OrderBy("s.starts_at ASC", "s.id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: ListAvailable - build select query: %w", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: ListAvailable - execute select: %w", ErrExecQuery, err)
	}
	defer rows.Close()

	result := make([]*domain.AvailableSlot, 0)
	for rows.Next() {
		var s domain.AvailableSlot
		if err := rows.Scan(&s.SlotID, &s.RouteID, &s.StartsAt, &s.EndsAt, &s.Total, &s.Remaining); err != nil {
			return nil, fmt.Errorf("%w: ListAvailable - scan slot: %w", ErrScanRow, err)
		}
		s.StartsAt = s.StartsAt.UTC()
		s.EndsAt = s.EndsAt.UTC()
		result = append(result, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: ListAvailable - iterate rows: %w", ErrScanRow, err)
	}
	return result, nil
}

func (r *Repository) getOne(ctx context.Context, op string, q squirrel.SelectBuilder) (*domain.Slot, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %s - build select query: %w", ErrBuildQuery, op, err)
	}

	var s domain.Slot
	err = executor.QueryRowContext(ctx, query, args...).Scan(
		&s.ID,
		&s.RouteID,
		&s.StartsAt,
		&s.EndsAt,
		&s.CapacityTotal,
		&s.CapacityHeld,
		&s.CapacityConfirmed,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s - scan slot: %w", ErrScanRow, op, err)
	}

	s.StartsAt = s.StartsAt.UTC()
	s.EndsAt = s.EndsAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}
