package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/m04kA/SMC-TourBookingService/pkg/psqlbuilder"
)

//go:embed postgres/*.sql sqlite/*.sql
var migrationFiles embed.FS

const advisoryLockID int64 = 734211509

// Apply применяет встроенные миграции диалекта в порядке имен файлов.
// Уже примененные миграции пропускаются (таблица schema_migrations).
func Apply(ctx context.Context, db *sql.DB, dialect psqlbuilder.Dialect) error {
	dir := "postgres"
	if dialect == psqlbuilder.SQLite {
		dir = "sqlite"
	}

	entries, err := migrationFiles.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	// одно соединение на всё время применения: advisory lock привязан к сессии
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Close()

	b := psqlbuilder.New(dialect)

	if dialect == psqlbuilder.Postgres {
		if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, advisoryLockID); err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		defer func() {
			_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, advisoryLockID)
		}()
	}

	if _, err := conn.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	name TEXT PRIMARY KEY,
	applied_at TIMESTAMP NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	for _, name := range names {
		query, args, err := b.Select("COUNT(*)").From("schema_migrations").Where("name = ?", name).ToSql()
		if err != nil {
			return fmt.Errorf("build check for %s: %w", name, err)
		}
		var applied int
		if err := conn.QueryRowContext(ctx, query, args...).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if applied > 0 {
			continue
		}

		body, err := migrationFiles.ReadFile(path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		stmt := strings.TrimSpace(string(body))
		if stmt == "" {
			continue
		}
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec migration %s: %w", name, err)
		}

		query, args, err = b.Insert("schema_migrations").
			Columns("name", "applied_at").
			Values(name, time.Now().UTC()).
			ToSql()
		if err != nil {
			return fmt.Errorf("build record for %s: %w", name, err)
		}
		if _, err := conn.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}
