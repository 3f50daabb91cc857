package get_available_slots

import "time"

// Request модель запроса на получение доступных выездов маршрута
type Request struct {
	RouteID int64
	From    time.Time // Начало диапазона (включительно)
	To      time.Time // Конец диапазона (не включительно)
}

// Response модель ответа с доступными выездами
type Response struct {
	RouteID int64  `json:"routeId"`
	From    string `json:"from"`
	To      string `json:"to"`
	Slots   []Slot `json:"slots"`
}

// Slot модель выезда с остатком мест
type Slot struct {
	SlotID    int64  `json:"slotId"`
	StartsAt  string `json:"startsAt"` // RFC3339, UTC
	EndsAt    string `json:"endsAt"`
	Total     int    `json:"total"`
	Remaining int    `json:"remaining"`
}
