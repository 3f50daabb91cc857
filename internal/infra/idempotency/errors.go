package idempotency

import "errors"

var (
	// ErrKeyRequired не передан ключ идемпотентности
	ErrKeyRequired = errors.New("idempotency: key required")

	// ErrRequestInProgress запрос с тем же ключом еще выполняется
	ErrRequestInProgress = errors.New("idempotency: request in progress")
)
