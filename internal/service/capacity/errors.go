package capacity

import "errors"

var (
	// ErrSlotNotFound слот не найден
	ErrSlotNotFound = errors.New("capacity: slot not found")

	// ErrInsufficientCapacity свободных мест меньше запрошенного
	ErrInsufficientCapacity = errors.New("capacity: insufficient capacity")

	// ErrInvalidCapacityState подтверждается больше мест, чем удержано
	ErrInvalidCapacityState = errors.New("capacity: invalid capacity state")

	// ErrInvalidQuantity количество мест должно быть положительным
	ErrInvalidQuantity = errors.New("capacity: quantity must be positive")

	// ErrTransactionRequired операции движка выполняются только в открытой транзакции
	ErrTransactionRequired = errors.New("capacity: open transaction required")

	// ErrInternal возвращается при внутренних ошибках
	ErrInternal = errors.New("capacity: internal error")
)
