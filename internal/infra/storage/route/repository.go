package route

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
	"github.com/m04kA/SMC-TourBookingService/pkg/dbmetrics"
	"github.com/m04kA/SMC-TourBookingService/pkg/psqlbuilder"
)

// DBExecutor интерфейс выполнения запросов
type DBExecutor = dbmetrics.DBExecutor

// Repository каталог маршрутов (только чтение для ядра, Create для наполнения каталога)
type Repository struct {
	db DBExecutor
	sb psqlbuilder.Builder
}

// NewRepository создает новый экземпляр репозитория маршрутов
func NewRepository(db DBExecutor, sb psqlbuilder.Builder) *Repository {
	return &Repository{db: db, sb: sb}
}

// Create добавляет маршрут в каталог
func (r *Repository) Create(ctx context.Context, route *domain.Route) (*domain.Route, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := r.sb.Insert("routes").
		Columns("code", "title", "price_per_seat", "currency", "active", "created_at").
		Values(route.Code, route.Title, route.PricePerSeat, route.Currency, route.Active, route.CreatedAt.UTC()).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: Create - build insert query: %w", ErrBuildQuery, err)
	}

	if err := executor.QueryRowContext(ctx, query, args...).Scan(&route.ID); err != nil {
		return nil, fmt.Errorf("%w: Create - execute insert: %w", ErrExecQuery, err)
	}
	return route, nil
}

// GetByID получает маршрут по ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*domain.Route, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := r.sb.Select("id", "code", "title", "price_per_seat", "currency", "active", "created_at").
		From("routes").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: GetByID - build select query: %w", ErrBuildQuery, err)
	}

	var route domain.Route
	err = executor.QueryRowContext(ctx, query, args...).Scan(
		&route.ID,
		&route.Code,
		&route.Title,
		&route.PricePerSeat,
		&route.Currency,
		&route.Active,
		&route.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRouteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: GetByID - scan route: %w", ErrScanRow, err)
	}

	route.CreatedAt = route.CreatedAt.UTC()
	return &route, nil
}

// SetActive включает или выключает маршрут
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := r.sb.Update("routes").
		Set("active", active).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: SetActive - build update query: %w", ErrBuildQuery, err)
	}

	res, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: SetActive - execute update: %w", ErrExecQuery, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRouteNotFound
	}
	return nil
}
