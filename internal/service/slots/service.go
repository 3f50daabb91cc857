package slots

import (
	"context"
	"errors"
	"fmt"
	"time"

	routeRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/route"
	slotRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/slot"
	"github.com/m04kA/SMC-TourBookingService/internal/service/slots/models"
)

// TimeProvider источник текущего времени
type TimeProvider interface {
	Now() time.Time
}

// Service чтение слотов для операторов и витрины
type Service struct {
	slotRepo  SlotRepository
	routeRepo RouteRepository
	clock     TimeProvider
	logger    Logger
}

// NewService создает новый экземпляр сервиса слотов
func NewService(slotRepo SlotRepository, routeRepo RouteRepository, clock TimeProvider, logger Logger) *Service {
	return &Service{
		slotRepo:  slotRepo,
		routeRepo: routeRepo,
		clock:     clock,
		logger:    logger,
	}
}

// GetSlot слот со счетчиками мест
func (s *Service) GetSlot(ctx context.Context, id int64) (*models.SlotResponse, error) {
	s.logger.Info("GetSlot: fetching slot id=%d", id)

	slot, err := s.slotRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, slotRepo.ErrSlotNotFound) {
			s.logger.Warn("GetSlot: slot id=%d not found", id)
			return nil, fmt.Errorf("%w: id=%d", ErrSlotNotFound, id)
		}
		s.logger.Error("GetSlot: repository error for slot id=%d: %v", id, err)
		return nil, fmt.Errorf("%w: GetSlot - repository error: %w", ErrInternal, err)
	}

	route, err := s.routeRepo.GetByID(ctx, slot.RouteID)
	if err != nil {
		// слот без маршрута невозможен при внешнем ключе, но отдаем 500, а не 404
		if errors.Is(err, routeRepo.ErrRouteNotFound) {
			s.logger.Error("GetSlot: slot id=%d references missing route id=%d", id, slot.RouteID)
		}
		return nil, fmt.Errorf("%w: GetSlot - route lookup: %w", ErrInternal, err)
	}

	return models.FromDomain(slot, route, s.clock.Now()), nil
}
