package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
	"github.com/m04kA/SMC-TourBookingService/internal/infra/storage/migrations"
	"github.com/m04kA/SMC-TourBookingService/pkg/dbmetrics"
	"github.com/m04kA/SMC-TourBookingService/pkg/psqlbuilder"
)

const testDBLockID int64 = 734211510

var dbSeq atomic.Int64

// DB тестовая база с примененными миграциями
type DB struct {
	Raw     *sql.DB
	Wrapped *dbmetrics.DB
	Builder psqlbuilder.Builder
}

// NewSQLiteDB in-memory SQLite на один тест.
// Одно соединение: писатели сериализуются пулом и BEGIN IMMEDIATE.
func NewSQLiteDB(t *testing.T) *DB {
	t.Helper()

	name := fmt.Sprintf("tours_test_%d_%d", time.Now().UnixNano(), dbSeq.Add(1))
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_txlock=immediate&_busy_timeout=5000&_foreign_keys=1", name)

	raw, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	raw.SetMaxOpenConns(1)
	raw.SetMaxIdleConns(1)
	raw.SetConnMaxLifetime(0)
	t.Cleanup(func() { _ = raw.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := migrations.Apply(ctx, raw, psqlbuilder.SQLite); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	return &DB{
		Raw:     raw,
		Wrapped: dbmetrics.Wrap(raw, nil),
		Builder: psqlbuilder.New(psqlbuilder.SQLite),
	}
}

// NewPostgresDB база из TEST_DATABASE_URL; тест пропускается, если она недоступна
func NewPostgresDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("skipping Postgres integration tests: TEST_DATABASE_URL is not set")
	}

	raw, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	raw.SetMaxOpenConns(16)
	t.Cleanup(func() { _ = raw.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := raw.PingContext(ctx); err != nil {
		t.Skipf("skipping Postgres integration tests: %v", err)
	}

	lockTestDB(t, raw)

	if err := migrations.Apply(ctx, raw, psqlbuilder.Postgres); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := raw.ExecContext(ctx, `TRUNCATE audit_events, invoices, bookings, slots, routes RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	return &DB{
		Raw:     raw,
		Wrapped: dbmetrics.Wrap(raw, nil),
		Builder: psqlbuilder.New(psqlbuilder.Postgres),
	}
}

// InsertRoute добавляет маршрут с ценой места price
func (d *DB) InsertRoute(t *testing.T, code string, price string, active bool) int64 {
	t.Helper()

	query, args, err := d.Builder.Insert("routes").
		Columns("code", "title", "price_per_seat", "currency", "active", "created_at").
		Values(code, "Route "+code, decimal.RequireFromString(price), "EUR", active, time.Now().UTC()).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		t.Fatalf("build insert route: %v", err)
	}

	var id int64
	if err := d.Raw.QueryRow(query, args...).Scan(&id); err != nil {
		t.Fatalf("insert route: %v", err)
	}
	return id
}

// InsertSlot добавляет слот маршрута с вместимостью capacity
func (d *DB) InsertSlot(t *testing.T, routeID int64, startsAt time.Time, capacity, held, confirmed int) int64 {
	t.Helper()

	now := time.Now().UTC()
	query, args, err := d.Builder.Insert("slots").
		Columns("route_id", "starts_at", "ends_at", "capacity_total", "capacity_held", "capacity_confirmed", "created_at", "updated_at").
		Values(routeID, startsAt.UTC(), startsAt.Add(3*time.Hour).UTC(), capacity, held, confirmed, now, now).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		t.Fatalf("build insert slot: %v", err)
	}

	var id int64
	if err := d.Raw.QueryRow(query, args...).Scan(&id); err != nil {
		t.Fatalf("insert slot: %v", err)
	}
	return id
}

// InsertBooking добавляет бронь в произвольном состоянии, минуя машину состояний
func (d *DB) InsertBooking(t *testing.T, b domain.Booking) int64 {
	t.Helper()

	if b.Code == "" {
		b.Code = fmt.Sprintf("T%07d", dbSeq.Add(1))
	}
	if b.State == "" {
		b.State = domain.StateDraft
	}
	if b.CustomerID == "" {
		b.CustomerID = "customer-1"
	}
	if b.CustomerName == "" {
		b.CustomerName = "Test Customer"
	}
	now := time.Now().UTC()

	var reason interface{}
	if b.CancelReason != nil {
		reason = string(*b.CancelReason)
	}
	var holdExpiresAt interface{}
	if b.HoldExpiresAt != nil {
		holdExpiresAt = b.HoldExpiresAt.UTC()
	}

	query, args, err := d.Builder.Insert("bookings").
		Columns("code", "slot_id", "qty", "state", "customer_id", "customer_name", "customer_phone",
			"cancel_reason", "payment_ref", "hold_expires_at", "created_at", "updated_at").
		Values(b.Code, b.SlotID, b.Qty, string(b.State), b.CustomerID, b.CustomerName, b.CustomerPhone,
			reason, b.PaymentRef, holdExpiresAt, now, now).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		t.Fatalf("build insert booking: %v", err)
	}

	var id int64
	if err := d.Raw.QueryRow(query, args...).Scan(&id); err != nil {
		t.Fatalf("insert booking: %v", err)
	}
	return id
}

// SlotCounters текущие счетчики слота: total, held, confirmed
func (d *DB) SlotCounters(t *testing.T, slotID int64) (total, held, confirmed int) {
	t.Helper()

	query, args, err := d.Builder.Select("capacity_total", "capacity_held", "capacity_confirmed").
		From("slots").
		Where("id = ?", slotID).
		ToSql()
	if err != nil {
		t.Fatalf("build select slot: %v", err)
	}
	if err := d.Raw.QueryRow(query, args...).Scan(&total, &held, &confirmed); err != nil {
		t.Fatalf("select slot: %v", err)
	}
	return total, held, confirmed
}

// CountRows число строк в таблице
func (d *DB) CountRows(t *testing.T, table string) int {
	t.Helper()

	var n int
	if err := d.Raw.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func lockTestDB(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := db.Conn(ctx)
	if err != nil {
		t.Fatalf("acquire lock conn: %v", err)
	}
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, testDBLockID); err != nil {
		_ = conn.Close()
		t.Fatalf("acquire test lock: %v", err)
	}

	t.Cleanup(func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, testDBLockID)
		_ = conn.Close()
	})
}
