package domain

import "time"

// Slot конкретный выезд маршрута с конечной вместимостью
type Slot struct {
	ID                int64
	RouteID           int64
	StartsAt          time.Time
	EndsAt            time.Time
	CapacityTotal     int
	CapacityHeld      int
	CapacityConfirmed int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Remaining свободные места
func (s *Slot) Remaining() int {
	return s.CapacityTotal - s.CapacityHeld - s.CapacityConfirmed
}

// IsConsistent проверяет инвариант capacityHeld + capacityConfirmed <= capacityTotal
func (s *Slot) IsConsistent() bool {
	return s.CapacityHeld >= 0 &&
		s.CapacityConfirmed >= 0 &&
		s.CapacityHeld+s.CapacityConfirmed <= s.CapacityTotal
}

// IsFull true, если свободных мест нет
func (s *Slot) IsFull() bool {
	return s.Remaining() <= 0
}

// AvailableSlot строка ответа на запрос доступности
type AvailableSlot struct {
	SlotID    int64
	RouteID   int64
	StartsAt  time.Time
	EndsAt    time.Time
	Total     int
	Remaining int
}
