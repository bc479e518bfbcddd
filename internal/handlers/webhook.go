package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/samkok24/char-chat-project-sub001/internal/apperrors"
	"github.com/samkok24/char-chat-project-sub001/internal/handlers/render"
	"github.com/samkok24/char-chat-project-sub001/internal/handlers/userctx"
	"github.com/samkok24/char-chat-project-sub001/internal/logger"
	"github.com/samkok24/char-chat-project-sub001/internal/service/webhook"
)

func handleCreatePaymentOrder(webhookService webhookService, l logger.Logger) http.Handler {
	type request struct {
		OrderID string `json:"order_id" validate:"required,uuid"`
		Amount  int64  `json:"amount" validate:"required,gt=0"`
	}

	type response struct {
		OrderID string `json:"order_id"`
		Amount  int64  `json:"amount"`
		Status  string `json:"status"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		orderID, err := uuid.Parse(data.OrderID)
		if err != nil {
			render.ServiceError(w, "Invalid order id", http.StatusUnprocessableEntity)
			return
		}

		order, err := webhookService.CreateOrder(r.Context(), orderID, userID, data.Amount)

		switch {
		case err == nil:
			render.JSON(w, response{OrderID: order.ID.String(), Amount: order.Amount, Status: order.Status})
		case errors.Is(err, apperrors.ErrInvalidAmount):
			render.ServiceError(w, "Invalid amount", http.StatusUnprocessableEntity)
		default:
			l.Error("Failed to create payment order", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// handlePaymentWebhook is authenticated with a shared secret header, not a
// user token: the caller is the payment gateway, not a user.
func handlePaymentWebhook(webhookService webhookService, secret string, l logger.Logger) http.Handler {
	type request struct {
		EventID string `json:"event_id" validate:"required"`
		OrderID string `json:"order_id" validate:"required,uuid"`
		Status  string `json:"status" validate:"required"`
	}

	type response struct {
		AlreadyProcessed bool   `json:"already_processed"`
		OrderStatus      string `json:"order_status,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provided := r.Header.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		orderID, err := uuid.Parse(data.OrderID)
		if err != nil {
			render.ServiceError(w, "Invalid order id", http.StatusUnprocessableEntity)
			return
		}

		result, err := webhookService.Process(r.Context(), webhook.Event{
			ID:      data.EventID,
			OrderID: orderID,
			Status:  data.Status,
		})

		switch {
		case err == nil:
			render.JSON(w, response{AlreadyProcessed: result.AlreadyProcessed, OrderStatus: result.Order.Status})
		case errors.Is(err, apperrors.ErrPaymentOrderNotFound):
			render.ServiceError(w, "Order not found", http.StatusNotFound)
		default:
			l.Error("Failed to process payment webhook", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
