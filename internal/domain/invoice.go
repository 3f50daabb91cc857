package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus статус счета
type InvoiceStatus string

const (
	InvoiceIssued InvoiceStatus = "issued"
	InvoicePaid   InvoiceStatus = "paid"
	InvoiceVoid   InvoiceStatus = "void"
)

// Invoice счет, один на бронь
type Invoice struct {
	ID        int64
	BookingID int64
	Number    string
	Amount    decimal.Decimal
	Currency  string
	Status    InvoiceStatus
	IssuedAt  time.Time
	PaidAt    *time.Time
	VoidedAt  *time.Time
	UpdatedAt time.Time
}

// InvoiceNumber номер счета вида INV-20250101-42
func InvoiceNumber(bookingID int64, issuedAt time.Time) string {
	return fmt.Sprintf("INV-%s-%d", issuedAt.UTC().Format("20060102"), bookingID)
}

// InvoiceAmount сумма за qty мест по цене маршрута, с округлением до копеек
func InvoiceAmount(pricePerSeat decimal.Decimal, qty int) decimal.Decimal {
	return pricePerSeat.Mul(decimal.NewFromInt(int64(qty))).Round(2)
}
