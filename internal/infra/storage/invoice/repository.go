package invoice

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

type DBExecutor = dbmetrics.DBExecutor

var invoiceColumns = []string{
	"id",
	"booking_id",
	"number",
	"amount",
	"currency",
	"status",
	"issued_at",
	"paid_at",
	"voided_at",
	"updated_at",
}

// Repository репозиторий счетов
type Repository struct {
	db DBExecutor
	sb psqlbuilder.Builder
}

// NewRepository создает новый экземпляр репозитория счетов
func NewRepository(db DBExecutor, sb psqlbuilder.Builder) *Repository {
	return &Repository{db: db, sb: sb}
}

// Create выставляет счет. Второй счет на ту же бронь отклоняется уникальным индексом.
func (r *Repository) Create(ctx context.Context, inv *domain.Invoice) (*domain.Invoice, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := r.sb.Insert("invoices").
		Columns("booking_id", "number", "amount", "currency", "status", "issued_at", "updated_at").
		Values(
			inv.BookingID,
			inv.Number,
			inv.Amount,
			inv.Currency,
			string(inv.Status),
			inv.IssuedAt.UTC(),
			inv.UpdatedAt.UTC(),
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: Create - build insert query: %w", ErrBuildQuery, err)
	}

	if err := executor.QueryRowContext(ctx, query, args...).Scan(&inv.ID); err != nil {
		if sqlerr.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: booking=%d", ErrInvoiceExists, inv.BookingID)
		}
		return nil, fmt.Errorf("%w: Create - execute insert: %w", ErrExecQuery, err)
	}
	return inv, nil
}

// GetByBookingID получает счет брони
func (r *Repository) GetByBookingID(ctx context.Context, bookingID int64) (*domain.Invoice, error) {
	q := r.sb.Select(invoiceColumns...).From("invoices").Where(squirrel.Eq{"booking_id": bookingID})
	return r.getOne(ctx, "GetByBookingID", q)
}

// GetByBookingIDForUpdate получает счет брони с блокировкой строки
func (r *Repository) GetByBookingIDForUpdate(ctx context.Context, bookingID int64) (*domain.Invoice, error) {
	if !dbmetrics.IsInTransaction(ctx) {
		return nil, ErrTransactionRequired
	}
	q := r.sb.ForUpdate(r.sb.Select(invoiceColumns...).From("invoices").Where(squirrel.Eq{"booking_id": bookingID}))
	return r.getOne(ctx, "GetByBookingIDForUpdate", q)
}

// MarkPaid issued → paid
func (r *Repository) MarkPaid(ctx context.Context, id int64, at time.Time) error {
	return r.setStatus(ctx, "MarkPaid", id, domain.InvoicePaid, "paid_at", at)
}

// MarkVoid issued → void
func (r *Repository) MarkVoid(ctx context.Context, id int64, at time.Time) error {
	return r.setStatus(ctx, "MarkVoid", id, domain.InvoiceVoid, "voided_at", at)
}

// setStatus переводит только счет в статусе issued
func (r *Repository) setStatus(ctx context.Context, op string, id int64, status domain.InvoiceStatus, column string, at time.Time) error {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := r.sb.Update("invoices").
		Set("status", string(status)).
		Set(column, at.UTC()).
		Set("updated_at", at.UTC()).
		Where(squirrel.Eq{"id": id, "status": string(domain.InvoiceIssued)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %s - build update query: %w", ErrBuildQuery, op, err)
	}

	res, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %s - execute update: %w", ErrExecQuery, op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s id=%d in status issued", ErrInvoiceNotFound, op, id)
	}
	return nil
}

func (r *Repository) getOne(ctx context.Context, op string, q squirrel.SelectBuilder) (*domain.Invoice, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %s - build select query: %w", ErrBuildQuery, op, err)
	}

	var (
		inv      domain.Invoice
		status   string
		paidAt   sql.NullTime
		voidedAt sql.NullTime
	)
	err = executor.QueryRowContext(ctx, query, args...).Scan(
		&inv.ID,
		&inv.BookingID,
		&inv.Number,
		&inv.Amount,
		&inv.Currency,
		&status,
		&inv.IssuedAt,
		&paidAt,
		&voidedAt,
		&inv.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s - scan invoice: %w", ErrScanRow, op, err)
	}

	inv.Status = domain.InvoiceStatus(status)
	inv.IssuedAt = inv.IssuedAt.UTC()
	inv.UpdatedAt = inv.UpdatedAt.UTC()
	if paidAt.Valid {
		t := paidAt.Time.UTC()
		inv.PaidAt = &t
	}
	if voidedAt.Valid {
		t := voidedAt.Time.UTC()
		inv.VoidedAt = &t
	}
	return &inv, nil
}
