package get_available_slots

import (
	"context"
	"errors"
	"fmt"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
	routeRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/route"
)

// UseCase use case для получения выездов маршрута со свободными местами
type UseCase struct {
	routeRepo RouteRepository
	slotRepo  SlotRepository
	logger    Logger
}

// NewUseCase создает новый экземпляр use case
func NewUseCase(routeRepo RouteRepository, slotRepo SlotRepository, logger Logger) *UseCase {
	return &UseCase{
		routeRepo: routeRepo,
		slotRepo:  slotRepo,
		logger:    logger,
	}
}

// Execute выполняет use case получения доступных выездов
func (uc *UseCase) Execute(ctx context.Context, req *Request) (*Response, error) {
	uc.logger.Info("GetAvailableSlots: route=%d, from=%s, to=%s",
		req.RouteID, req.From.Format(domain.TimeFormat), req.To.Format(domain.TimeFormat))

	// 1. Валидация входных данных
	if err := validateRequest(req); err != nil {
		uc.logger.Warn("GetAvailableSlots: validation failed: %v", err)
		return nil, err
	}

	from := req.From.UTC()
	to := req.To.UTC()
	resp := &Response{
		RouteID: req.RouteID,
		From:    from.Format(domain.TimeFormat),
		To:      to.Format(domain.TimeFormat),
		Slots:   []Slot{},
	}

	// 2. Маршрут должен существовать
	route, err := uc.routeRepo.GetByID(ctx, req.RouteID)
	if err != nil {
		if errors.Is(err, routeRepo.ErrRouteNotFound) {
			uc.logger.Warn("GetAvailableSlots: route id=%d not found", req.RouteID)
			return nil, ErrRouteNotFound
		}
		uc.logger.Error("GetAvailableSlots: failed to get route id=%d: %v", req.RouteID, err)
		return nil, fmt.Errorf("%w: failed to get route: %w", ErrInternal, err)
	}

	// 3. Снятый с продажи маршрут не отдает выездов
	if !route.Active {
		uc.logger.Info("GetAvailableSlots: route id=%d is inactive", req.RouteID)
		return resp, nil
	}

	// 4. Выезды с остатком мест
	slots, err := uc.slotRepo.ListAvailable(ctx, route.ID, from, to)
	if err != nil {
		uc.logger.Error("GetAvailableSlots: failed to list slots for route id=%d: %v", route.ID, err)
		return nil, fmt.Errorf("%w: failed to list slots: %w", ErrInternal, err)
	}

	for _, s := range slots {
		resp.Slots = append(resp.Slots, Slot{
			SlotID:    s.SlotID,
			StartsAt:  s.StartsAt.UTC().Format(domain.TimeFormat),
			EndsAt:    s.EndsAt.UTC().Format(domain.TimeFormat),
			Total:     s.Total,
			Remaining: s.Remaining,
		})
	}

	uc.logger.Info("GetAvailableSlots: found %d slots for route id=%d", len(resp.Slots), route.ID)
	return resp, nil
}
