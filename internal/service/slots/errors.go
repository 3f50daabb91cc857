package slots

import "errors"

var (
	ErrSlotNotFound = errors.New("slots: slot not found")
	ErrInternal     = errors.New("slots: internal error")
)
