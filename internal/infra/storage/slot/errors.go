package slot

import "errors"

var (
	// ErrSlotNotFound возвращается, когда слот не найден
	ErrSlotNotFound = errors.New("slot.repository: slot not found")

	// ErrTransactionRequired блокировка строки возможна только внутри транзакции
	ErrTransactionRequired = errors.New("slot.repository: transaction required")

	// ErrCapacityConstraint хранилище отклонило счетчики (CHECK slots_capacity_check)
	ErrCapacityConstraint = errors.New("slot.repository: capacity constraint violated")

	// ErrBuildQuery возвращается при ошибке построения SQL запроса
	ErrBuildQuery = errors.New("slot.repository: failed to build query")

	// ErrExecQuery возвращается при ошибке выполнения SQL запроса
	ErrExecQuery = errors.New("slot.repository: failed to execute query")

	// ErrScanRow возвращается при ошибке сканирования результата запроса
	ErrScanRow = errors.New("slot.repository: failed to scan row")
)
