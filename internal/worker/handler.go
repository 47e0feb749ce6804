package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/campustrade/market-api/internal/domain"
)

type notificationInserter interface {
	Insert(ctx context.Context, n *domain.Notification) error
}

// EventHandler turns order lifecycle events into in-app notifications
// for the counterparty and forwards a copy to the campus mail gateway.
// Notification failures are returned so the consumer retries the
// message; mail gateway failures are logged and dropped.
type EventHandler struct {
	store          notificationInserter
	mailGatewayURL string
	httpClient     *http.Client
	logger         *slog.Logger
}

func NewEventHandler(store notificationInserter, mailGatewayURL string, client *http.Client, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		store:          store,
		mailGatewayURL: mailGatewayURL,
		httpClient:     client,
		logger:         logger,
	}
}

func (h *EventHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order event: %w", err)
	}

	recipients := h.recipients(event)
	if len(recipients) == 0 {
		h.logger.Warn("skipping unknown order event", "type", event.Type, "order_id", event.OrderID)
		return nil
	}

	h.logger.Info("processing order event", "type", event.Type, "order_id", event.OrderID)

	for userID, body := range recipients {
		n := &domain.Notification{
			UserID:  userID,
			OrderID: event.OrderID,
			Kind:    event.Type,
			Body:    body,
		}
		if err := h.store.Insert(ctx, n); err != nil {
			return fmt.Errorf("insert notification for %s: %w", userID, err)
		}

		if err := h.sendMail(ctx, userID, event, body); err != nil {
			h.logger.Error("failed to forward mail", "error", err, "order_id", event.OrderID, "user_id", userID)
		}
	}

	return nil
}

func (h *EventHandler) recipients(event domain.OrderEvent) map[string]string {
	switch event.Type {
	case domain.EventOrderCreated:
		return map[string]string{
			event.SellerID: fmt.Sprintf("You have a new order %s awaiting payment.", event.OrderID),
		}
	case domain.EventOrderPaid:
		return map[string]string{
			event.SellerID: fmt.Sprintf("Order %s has been paid. Please ship it.", event.OrderID),
		}
	case domain.EventOrderShipped:
		return map[string]string{
			event.BuyerID: fmt.Sprintf("Order %s has been shipped.", event.OrderID),
		}
	case domain.EventOrderCompleted:
		return map[string]string{
			event.SellerID: fmt.Sprintf("Order %s was completed by the buyer.", event.OrderID),
		}
	case domain.EventOrderCancelled:
		return map[string]string{
			event.BuyerID:  fmt.Sprintf("Order %s has been cancelled.", event.OrderID),
			event.SellerID: fmt.Sprintf("Order %s has been cancelled and its stock restored.", event.OrderID),
		}
	default:
		return nil
	}
}

func (h *EventHandler) sendMail(ctx context.Context, userID string, event domain.OrderEvent, body string) error {
	if h.mailGatewayURL == "" {
		return nil
	}

	payload := map[string]string{
		"user_id": userID,
		"subject": fmt.Sprintf("[market] %s: %s", event.Type, event.OrderID),
		"body":    body,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.mailGatewayURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mail gateway returned status %d", resp.StatusCode)
	}

	return nil
}
