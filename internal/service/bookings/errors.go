package bookings

import "errors"

var (
	// ErrBookingNotFound возвращается, когда бронирование не найдено
	ErrBookingNotFound = errors.New("bookings: booking not found")

	// ErrSlotNotFound слот брони не найден
	ErrSlotNotFound = errors.New("bookings: slot not found")

	// ErrRouteNotFound маршрут слота не найден
	ErrRouteNotFound = errors.New("bookings: route not found")

	// ErrInvoiceNotFound у брони нет счета
	ErrInvoiceNotFound = errors.New("bookings: invoice not found")

	// ErrConflict переход недопустим из текущего состояния
	ErrConflict = errors.New("bookings: state conflict")

	// ErrHoldExpired срок удержания истек, счет выставить нельзя
	ErrHoldExpired = errors.New("bookings: hold expired")

	// ErrInsufficientCapacity на слоте не хватает свободных мест
	ErrInsufficientCapacity = errors.New("bookings: insufficient capacity")

	// ErrInvalidInput возвращается при некорректных входных данных
	ErrInvalidInput = errors.New("bookings: invalid input data")

	// ErrInternal возвращается при внутренних ошибках сервиса
	ErrInternal = errors.New("bookings: internal error")
)
