package smsgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
)

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// Client клиент HTTP-шлюза SMS
type Client struct {
	baseURL    string
	sender     string
	httpClient *http.Client
	log        Logger
}

// NewClient создает новый экземпляр клиента шлюза
func NewClient(baseURL, sender string, timeout time.Duration, log Logger) *Client {
	return &Client{
		baseURL: baseURL,
		sender:  sender,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// Send отправляет одно сообщение
func (c *Client) Send(ctx context.Context, msg Message) (*SendResponse, error) {
	if msg.From == "" {
		msg.From = c.sender
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode message: %v", ErrInternal, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrInternal, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to execute request: %v", ErrInternal, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		var gwErr ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&gwErr)
		return nil, fmt.Errorf("%w: %s", ErrRejected, gwErr.Message)
	default:
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: unexpected status code %d: %s", ErrInvalidResponse, resp.StatusCode, string(raw))
	}

	var sent SendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sent); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrInvalidResponse, err)
	}
	return &sent, nil
}

func (c *Client) Name() string {
	return "sms"
}

// Publish уведомляет клиента о подтверждении брони и о снятом удержании.
// Без телефона и для остальных событий ничего не отправляет.
func (c *Client) Publish(ctx context.Context, event domain.BookingEvent) error {
	if event.CustomerPhone == nil || *event.CustomerPhone == "" {
		return nil
	}

	var text string
	switch event.Action {
	case domain.ActionBookingConfirmed:
		text = fmt.Sprintf("Booking %s confirmed: %d seat(s). See you on the tour!", event.BookingCode, event.Qty)
	case domain.ActionBookingHoldExpired:
		text = fmt.Sprintf("Booking %s expired: the seats were released because the invoice was not issued in time.", event.BookingCode)
	default:
		return nil
	}

	sent, err := c.Send(ctx, Message{To: *event.CustomerPhone, Text: text})
	if err != nil {
		c.log.Error("SMS gateway unavailable for booking=%s action=%s: %v", event.BookingCode, event.Action, err)
		return err
	}

	c.log.Info("SMS sent for booking=%s action=%s id=%s", event.BookingCode, event.Action, sent.ID)
	return nil
}
