package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
	bookingRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/booking"
	invoiceRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/invoice"
	slotRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/slot"
	"github.com/m04kA/SMC-TourBookingService/internal/service/bookings/models"
)

// GetByID получает бронирование вместе со счетом
func (s *Service) GetByID(ctx context.Context, id int64) (*models.BookingDetailsResponse, error) {
	s.logger.Info("GetByID: fetching booking id=%d", id)

	booking, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingRepo.ErrBookingNotFound) {
			s.logger.Warn("GetByID: booking id=%d not found", id)
			return nil, fmt.Errorf("%w: id=%d", ErrBookingNotFound, id)
		}
		s.logger.Error("GetByID: repository error for booking id=%d: %v", id, err)
		return nil, fmt.Errorf("%w: GetByID - repository error: %w", ErrInternal, err)
	}

	return s.withInvoice(ctx, "GetByID", booking)
}

// GetByCode находит бронирование по коду, который видит клиент
func (s *Service) GetByCode(ctx context.Context, code string) (*models.BookingDetailsResponse, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != domain.BookingCodeLength {
		return nil, fmt.Errorf("%w: code must be %d characters", ErrInvalidInput, domain.BookingCodeLength)
	}

	s.logger.Info("GetByCode: fetching booking code=%s", code)

	booking, err := s.bookingRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, bookingRepo.ErrBookingNotFound) {
			s.logger.Warn("GetByCode: booking code=%s not found", code)
			return nil, fmt.Errorf("%w: code=%s", ErrBookingNotFound, code)
		}
		s.logger.Error("GetByCode: repository error for booking code=%s: %v", code, err)
		return nil, fmt.Errorf("%w: GetByCode - repository error: %w", ErrInternal, err)
	}

	return s.withInvoice(ctx, "GetByCode", booking)
}

func (s *Service) withInvoice(ctx context.Context, op string, booking *domain.Booking) (*models.BookingDetailsResponse, error) {
	resp := &models.BookingDetailsResponse{Booking: models.FromDomainBooking(booking)}

	inv, err := s.invoiceRepo.GetByBookingID(ctx, booking.ID)
	switch {
	case err == nil:
		resp.Invoice = models.FromDomainInvoice(inv)
	case !errors.Is(err, invoiceRepo.ErrInvoiceNotFound):
		s.logger.Error("%s: invoice lookup failed for booking id=%d: %v", op, booking.ID, err)
		return nil, fmt.Errorf("%w: %s - invoice repository error: %w", ErrInternal, op, err)
	}

	return resp, nil
}

// ListByCustomer история бронирований клиента, новые первыми
func (s *Service) ListByCustomer(ctx context.Context, req *models.ListByCustomerRequest) (*models.BookingListResponse, error) {
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" || len(customerID) > domain.MaxCustomerIDLength {
		return nil, fmt.Errorf("%w: customerId must be 1..%d characters", ErrInvalidInput, domain.MaxCustomerIDLength)
	}

	filter := domain.BookingFilter{CustomerID: &customerID, Limit: domain.DefaultListLimit}
	if err := applyStateFilter(&filter, req.State); err != nil {
		s.logger.Warn("ListByCustomer: invalid state=%s for customer=%s", *req.State, customerID)
		return nil, err
	}

	s.logger.Info("ListByCustomer: fetching bookings for customer=%s", customerID)
	return s.list(ctx, "ListByCustomer", filter)
}

// ListBySlot бронирования на слоте для операторов
func (s *Service) ListBySlot(ctx context.Context, req *models.ListBySlotRequest) (*models.BookingListResponse, error) {
	if req.SlotID <= 0 {
		return nil, fmt.Errorf("%w: slotId must be positive", ErrInvalidInput)
	}

	filter := domain.BookingFilter{SlotID: &req.SlotID, Limit: domain.DefaultListLimit}
	if err := applyStateFilter(&filter, req.State); err != nil {
		s.logger.Warn("ListBySlot: invalid state=%s for slot=%d", *req.State, req.SlotID)
		return nil, err
	}

	if _, err := s.slotRepo.GetByID(ctx, req.SlotID); err != nil {
		if errors.Is(err, slotRepo.ErrSlotNotFound) {
			return nil, fmt.Errorf("%w: id=%d", ErrSlotNotFound, req.SlotID)
		}
		s.logger.Error("ListBySlot: slot lookup failed for slot=%d: %v", req.SlotID, err)
		return nil, fmt.Errorf("%w: ListBySlot - slot repository error: %w", ErrInternal, err)
	}

	s.logger.Info("ListBySlot: fetching bookings for slot=%d", req.SlotID)
	return s.list(ctx, "ListBySlot", filter)
}

func (s *Service) list(ctx context.Context, op string, filter domain.BookingFilter) (*models.BookingListResponse, error) {
	bookings, err := s.bookingRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("%s: repository error: %v", op, err)
		return nil, fmt.Errorf("%w: %s - repository error: %w", ErrInternal, op, err)
	}
	return models.FromDomainBookingList(bookings), nil
}

func applyStateFilter(filter *domain.BookingFilter, state *string) error {
	if state == nil || *state == "" {
		return nil
	}
	st, err := models.ToDomainBookingState(*state)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	filter.State = &st
	return nil
}
