package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Route маршрут из каталога; слоты ссылаются на него
type Route struct {
	ID           int64
	Code         string
	Title        string
	PricePerSeat decimal.Decimal
	Currency     string
	Active       bool
	CreatedAt    time.Time
}
