package psqlbuilder

import (
	"fmt"

	"github.com/Masterminds/squirrel"
)

// Dialect диалект хранилища
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

// ParseDialect разбирает имя драйвера из конфигурации
func ParseDialect(name string) (Dialect, error) {
	switch name {
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("psqlbuilder: unsupported dialect %q", name)
	}
}

// Builder squirrel-билдер с плейсхолдерами под диалект
type Builder struct {
	sb      squirrel.StatementBuilderType
	dialect Dialect
}

// New создает билдер для диалекта
func New(dialect Dialect) Builder {
	format := squirrel.PlaceholderFormat(squirrel.Dollar)
	if dialect == SQLite {
		format = squirrel.Question
	}
	return Builder{
		sb:      squirrel.StatementBuilder.PlaceholderFormat(format),
		dialect: dialect,
	}
}

func (b Builder) Dialect() Dialect {
	return b.dialect
}

func (b Builder) Select(columns ...string) squirrel.SelectBuilder {
	return b.sb.Select(columns...)
}

func (b Builder) Insert(table string) squirrel.InsertBuilder {
	return b.sb.Insert(table)
}

func (b Builder) Update(table string) squirrel.UpdateBuilder {
	return b.sb.Update(table)
}

func (b Builder) Delete(table string) squirrel.DeleteBuilder {
	return b.sb.Delete(table)
}

// ForUpdate добавляет эксклюзивную блокировку строк.
// В SQLite писатель и так один (BEGIN IMMEDIATE), суффикс не нужен.
func (b Builder) ForUpdate(q squirrel.SelectBuilder) squirrel.SelectBuilder {
	if b.dialect == SQLite {
		return q
	}
	return q.Suffix("FOR UPDATE")
}
