package booking

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

var bookingColumns = []string{
	"id",
	"code",
	"slot_id",
	"qty",
	"state",
	"customer_id",
	"customer_name",
	"customer_phone",
	"cancel_reason",
	"payment_ref",
	"hold_expires_at",
	"created_at",
	"updated_at",
}

// Repository репозиторий для работы с бронированиями
type Repository struct {
	db DBExecutor
	sb psqlbuilder.Builder
}

// NewRepository создает новый экземпляр репозитория бронирований
func NewRepository(db DBExecutor, sb psqlbuilder.Builder) *Repository {
	return &Repository{db: db, sb: sb}
}

// Create создает новое бронирование.
// Если в контексте передана активная транзакция, использует её.
func (r *Repository) Create(ctx context.Context, booking *domain.Booking) (*domain.Booking, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := r.sb.Insert("bookings").
		Columns(
			"code",
			"slot_id",
			"qty",
			"state",
			"customer_id",
			"customer_name",
			"customer_phone",
			"cancel_reason",
			"payment_ref",
			"hold_expires_at",
			"created_at",
			"updated_at",
		).
		Values(
			booking.Code,
			booking.SlotID,
			booking.Qty,
			string(booking.State),
			booking.CustomerID,
			booking.CustomerName,
			booking.CustomerPhone,
			cancelReasonValue(booking.CancelReason),
			booking.PaymentRef,
			utcPtr(booking.HoldExpiresAt),
			booking.CreatedAt.UTC(),
			booking.UpdatedAt.UTC(),
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: Create - build insert query: %w", ErrBuildQuery, err)
	}

	if err := executor.QueryRowContext(ctx, query, args...).Scan(&booking.ID); err != nil {
		if sqlerr.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: code=%s", ErrDuplicateCode, booking.Code)
		}
		return nil, fmt.Errorf("%w: Create - execute insert: %w", ErrExecQuery, err)
	}
	return booking, nil
}

// GetByID получает бронирование по ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	q := r.sb.Select(bookingColumns...).From("bookings").Where(squirrel.Eq{"id": id})
	return r.getOne(ctx, "GetByID", q)
}

// GetByIDForUpdate получает бронирование с эксклюзивной блокировкой строки
func (r *Repository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Booking, error) {
	if !dbmetrics.IsInTransaction(ctx) {
		return nil, ErrTransactionRequired
	}
	q := r.sb.ForUpdate(r.sb.Select(bookingColumns...).From("bookings").Where(squirrel.Eq{"id": id}))
	return r.getOne(ctx, "GetByIDForUpdate", q)
}

// GetByCode получает бронирование по человекочитаемому коду
func (r *Repository) GetByCode(ctx context.Context, code string) (*domain.Booking, error) {
	q := r.sb.Select(bookingColumns...).From("bookings").Where(squirrel.Eq{"code": code})
	return r.getOne(ctx, "GetByCode", q)
}

// List получает бронирования по фильтру, новые первыми
func (r *Repository) List(ctx context.Context, filter domain.BookingFilter) ([]*domain.Booking, error) {
	q := r.sb.Select(bookingColumns...).From("bookings")

	if filter.CustomerID != nil {
		q = q.Where(squirrel.Eq{"customer_id": *filter.CustomerID})
	}
	if filter.SlotID != nil {
		q = q.Where(squirrel.Eq{"slot_id": *filter.SlotID})
	}
	if filter.State != nil {
		q = q.Where(squirrel.Eq{"state": string(*filter.State)})
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = domain.DefaultListLimit
	}
	q = q.OrderBy("created_at DESC", "id DESC").Limit(uint64(limit))

	return r.getMany(ctx, "List", q)
}

// ListExpiredHolds бронирования в hold, у которых срок удержания истек к моменту now.
// Страницы по возрастанию id начиная после afterID.
func (r *Repository) ListExpiredHolds(ctx context.Context, now time.Time, afterID int64, limit int) ([]*domain.Booking, error) {
	q := r.sb.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.Eq{"state": string(domain.StateHold)}).
		Where(squirrel.LtOrEq{"hold_expires_at": now.UTC()}).
		Where(squirrel.Gt{"id": afterID}).
		OrderBy("id ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return r.getMany(ctx, "ListExpiredHolds", q)
}

// UpdateState сохраняет состояние брони и зависящие от него поля
func (r *Repository) UpdateState(ctx context.Context, booking *domain.Booking) error {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := r.sb.Update("bookings").
		Set("state", string(booking.State)).
		Set("cancel_reason", cancelReasonValue(booking.CancelReason)).
		Set("payment_ref", booking.PaymentRef).
		Set("hold_expires_at", utcPtr(booking.HoldExpiresAt)).
		Set("updated_at", booking.UpdatedAt.UTC()).
		Where(squirrel.Eq{"id": booking.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: UpdateState - build update query: %w", ErrBuildQuery, err)
	}

	res, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: UpdateState - execute update: %w", ErrExecQuery, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (r *Repository) getOne(ctx context.Context, op string, q squirrel.SelectBuilder) (*domain.Booking, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %s - build select query: %w", ErrBuildQuery, op, err)
	}

	booking, err := scanBooking(executor.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s - scan booking: %w", ErrScanRow, op, err)
	}
	return booking, nil
}

func (r *Repository) getMany(ctx context.Context, op string, q squirrel.SelectBuilder) ([]*domain.Booking, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %s - build select query: %w", ErrBuildQuery, op, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s - execute select: %w", ErrExecQuery, op, err)
	}
	defer rows.Close()

	bookings := make([]*domain.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %s - scan booking: %w", ErrScanRow, op, err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s - iterate rows: %w", ErrScanRow, op, err)
	}
	return bookings, nil
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var (
		b             domain.Booking
		state         string
		phone         sql.NullString
		cancelReason  sql.NullString
		paymentRef    sql.NullString
		holdExpiresAt sql.NullTime
	)

	err := row.Scan(
		&b.ID,
		&b.Code,
		&b.SlotID,
		&b.Qty,
		&state,
		&b.CustomerID,
		&b.CustomerName,
		&phone,
		&cancelReason,
		&paymentRef,
		&holdExpiresAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.State = domain.BookingState(state)
	if phone.Valid {
		b.CustomerPhone = &phone.String
	}
	if cancelReason.Valid {
		reason := domain.CancelReason(cancelReason.String)
		b.CancelReason = &reason
	}
	if paymentRef.Valid {
		b.PaymentRef = &paymentRef.String
	}
	if holdExpiresAt.Valid {
		t := holdExpiresAt.Time.UTC()
		b.HoldExpiresAt = &t
	}
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()

	return &b, nil
}

func cancelReasonValue(reason *domain.CancelReason) interface{} {
	if reason == nil {
		return nil
	}
	return string(*reason)
}

func utcPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
