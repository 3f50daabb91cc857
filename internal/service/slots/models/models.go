package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
)

// SlotResponse слот со счетчиками мест и ценой маршрута
type SlotResponse struct {
	ID                int64           `json:"id"`
	RouteID           int64           `json:"routeId"`
	RouteCode         string          `json:"routeCode"`
	RouteTitle        string          `json:"routeTitle"`
	StartsAt          time.Time       `json:"startsAt"`
	EndsAt            time.Time       `json:"endsAt"`
	CapacityTotal     int             `json:"capacityTotal"`
	CapacityHeld      int             `json:"capacityHeld"`
	CapacityConfirmed int             `json:"capacityConfirmed"`
	Remaining         int             `json:"remaining"`
	PricePerSeat      decimal.Decimal `json:"pricePerSeat"`
	Currency          string          `json:"currency"`
	OnSale            bool            `json:"onSale"`
}

// FromDomain собирает ответ из слота и его маршрута
func FromDomain(slot *domain.Slot, route *domain.Route, now time.Time) *SlotResponse {
	return &SlotResponse{
		ID:                slot.ID,
		RouteID:           slot.RouteID,
		RouteCode:         route.Code,
		RouteTitle:        route.Title,
		StartsAt:          slot.StartsAt.UTC(),
		EndsAt:            slot.EndsAt.UTC(),
		CapacityTotal:     slot.CapacityTotal,
		CapacityHeld:      slot.CapacityHeld,
		CapacityConfirmed: slot.CapacityConfirmed,
		Remaining:         slot.Remaining(),
		PricePerSeat:      route.PricePerSeat,
		Currency:          route.Currency,
		OnSale:            route.Active && slot.StartsAt.After(now),
	}
}
