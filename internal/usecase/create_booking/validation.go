package create_booking

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
)

// codeAlphabet без похожих символов (0/O, 1/I)
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// validateRequest валидирует входные данные запроса
func validateRequest(req *Request, maxQty int) error {
	if req.SlotID <= 0 {
		return fmt.Errorf("%w: slotId must be positive", ErrInvalidInput)
	}

	if req.Qty < domain.MinQty || req.Qty > maxQty {
		return fmt.Errorf("%w: qty must be between %d and %d", ErrInvalidInput, domain.MinQty, maxQty)
	}

	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" || len(customerID) > domain.MaxCustomerIDLength {
		return fmt.Errorf("%w: customerId must be 1..%d characters", ErrInvalidInput, domain.MaxCustomerIDLength)
	}

	name := strings.TrimSpace(req.CustomerName)
	if name == "" || len(name) > domain.MaxCustomerNameLength {
		return fmt.Errorf("%w: customerName must be 1..%d characters", ErrInvalidInput, domain.MaxCustomerNameLength)
	}

	return nil
}

// validateSlot проверяет, что на слот еще можно оформить бронь
func validateSlot(slot *domain.Slot, route *domain.Route, qty int, now time.Time) error {
	if !route.Active {
		return fmt.Errorf("%w: route %s is not on sale", ErrSlotNotBookable, route.Code)
	}

	if !slot.StartsAt.After(now) {
		return fmt.Errorf("%w: slot id=%d already started", ErrSlotNotBookable, slot.ID)
	}

	if qty > slot.CapacityTotal {
		return fmt.Errorf("%w: qty %d exceeds slot capacity %d", ErrInvalidInput, qty, slot.CapacityTotal)
	}

	return nil
}

// newBookingCode случайный код брони
func newBookingCode() (string, error) {
	buf := make([]byte, domain.BookingCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
