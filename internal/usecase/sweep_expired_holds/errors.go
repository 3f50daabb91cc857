package sweep_expired_holds

import "errors"

var (
	// ErrInternal возвращается, если не удалось получить список просроченных броней
	ErrInternal = errors.New("sweep_expired_holds: internal error")
)
