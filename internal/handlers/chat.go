package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/samkok24/char-chat-project-sub001/internal/apperrors"
	"github.com/samkok24/char-chat-project-sub001/internal/handlers/render"
	"github.com/samkok24/char-chat-project-sub001/internal/handlers/userctx"
	"github.com/samkok24/char-chat-project-sub001/internal/logger"
)

func handleChatDeduct(pointService pointService, l logger.Logger) http.Handler {
	type request struct {
		ModelID string `json:"model_id" validate:"required"`
	}

	type response struct {
		TxID    string `json:"tx_id,omitempty"`
		Cost    int64  `json:"cost"`
		Balance int64  `json:"balance"`
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

		receipt, cost, err := pointService.DeductChatTurn(r.Context(), userID, data.ModelID)

		switch {
		case err == nil:
			resp := response{Cost: cost, Balance: receipt.Balance}
			if receipt.TxID != uuid.Nil {
				resp.TxID = receipt.TxID.String()
			}
			render.JSON(w, resp)
		case errors.Is(err, apperrors.ErrBalanceInsufficient):
			render.InsufficientBalance(w, receipt.Balance)
		case errors.Is(err, apperrors.ErrUnknownModel):
			render.ServiceError(w, "Unknown model", http.StatusUnprocessableEntity)
		default:
			l.Error("Failed to deduct chat turn", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleChatRefund(pointService pointService, l logger.Logger) http.Handler {
	type request struct {
		ModelID string `json:"model_id" validate:"required"`
		TxID    string `json:"tx_id" validate:"required,uuid"`
	}

	type response struct {
		Refunded int64 `json:"refunded"`
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

		txID, err := uuid.Parse(data.TxID)
		if err != nil {
			render.ServiceError(w, "Invalid tx id", http.StatusUnprocessableEntity)
			return
		}

		refunded, err := pointService.RefundChatTurn(r.Context(), userID, data.ModelID, txID)

		switch {
		case err == nil:
			render.JSON(w, response{Refunded: refunded})
		case errors.Is(err, apperrors.ErrUnknownModel):
			render.ServiceError(w, "Unknown model", http.StatusUnprocessableEntity)
		default:
			l.Error("Failed to refund chat turn", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
