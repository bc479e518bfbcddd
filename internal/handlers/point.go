package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/samkok24/char-chat-project-sub001/internal/apperrors"
	"github.com/samkok24/char-chat-project-sub001/internal/handlers/render"
	"github.com/samkok24/char-chat-project-sub001/internal/handlers/userctx"
	"github.com/samkok24/char-chat-project-sub001/internal/logger"
)

func handleBalance(pointService pointService, l logger.Logger) http.Handler {
	type response struct {
		Balance int64 `json:"balance"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		balance, err := pointService.GetBalance(r.Context(), userID)

		switch err {
		case nil:
			render.JSON(w, response{Balance: balance})
		default:
			l.Error("Failed to get balance", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleTransactions(pointService pointService, l logger.Logger) http.Handler {
	type transaction struct {
		ID            string    `json:"id"`
		Kind          string    `json:"kind"`
		Amount        int64     `json:"amount"`
		BalanceAfter  int64     `json:"balance_after"`
		Description   string    `json:"description,omitempty"`
		ReferenceType string    `json:"reference_type,omitempty"`
		ReferenceID   string    `json:"reference_id,omitempty"`
		CreatedAt     time.Time `json:"created_at"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		query := r.URL.Query()
		limit, _ := strconv.Atoi(query.Get("limit"))
		offset, _ := strconv.Atoi(query.Get("offset"))

		var kinds []string
		if kind := query.Get("kind"); kind != "" {
			kinds = []string{kind}
		}

		entries, err := pointService.Transactions(r.Context(), userID, kinds, limit, offset)
		if err != nil {
			l.Error("Failed to list transactions", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		transactions := make([]transaction, 0, len(entries))
		for _, e := range entries {
			transactions = append(transactions, transaction{
				ID:            e.ID.String(),
				Kind:          e.Kind,
				Amount:        e.Amount,
				BalanceAfter:  e.BalanceAfter,
				Description:   e.Description,
				ReferenceType: e.ReferenceType,
				ReferenceID:   e.ReferenceID,
				CreatedAt:     e.CreatedAt,
			})
		}
		render.JSON(w, transactions)
	})
}

func handleRecentSpends(pointService pointService, l logger.Logger) http.Handler {
	type spend struct {
		TxID   string    `json:"tx_id"`
		Amount int64     `json:"amount"`
		Reason string    `json:"reason,omitempty"`
		At     time.Time `json:"at"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		records, err := pointService.RecentSpends(r.Context(), userID)
		if err != nil {
			l.Error("Failed to list recent spends", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		spends := make([]spend, 0, len(records))
		for _, rec := range records {
			spends = append(spends, spend{
				TxID:   rec.TxID.String(),
				Amount: rec.Amount,
				Reason: rec.Reason,
				At:     rec.At,
			})
		}
		render.JSON(w, spends)
	})
}

func handleCharge(pointService pointService, l logger.Logger) http.Handler {
	type request struct {
		Amount        int64  `json:"amount" validate:"required,gt=0"`
		Description   string `json:"description"`
		ReferenceType string `json:"reference_type"`
		ReferenceID   string `json:"reference_id"`
	}

	type response struct {
		Balance int64 `json:"balance"`
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

		balance, err := pointService.ChargePoints(r.Context(), userID, data.Amount, data.Description, data.ReferenceType, data.ReferenceID)

		switch {
		case err == nil:
			render.JSON(w, response{Balance: balance})
		case errors.Is(err, apperrors.ErrInvalidAmount):
			render.ServiceError(w, "Invalid amount", http.StatusUnprocessableEntity)
		default:
			l.Error("Failed to charge points", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleUse(pointService pointService, l logger.Logger) http.Handler {
	type request struct {
		Amount        int64  `json:"amount" validate:"required,gt=0"`
		Reason        string `json:"reason"`
		ReferenceType string `json:"reference_type"`
		ReferenceID   string `json:"reference_id"`
	}

	type response struct {
		TxID    string `json:"tx_id"`
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

		receipt, err := pointService.UsePointsAtomic(r.Context(), userID, data.Amount, data.Reason, data.ReferenceType, data.ReferenceID)

		switch {
		case err == nil:
			render.JSON(w, response{TxID: receipt.TxID.String(), Balance: receipt.Balance})
		case errors.Is(err, apperrors.ErrBalanceInsufficient):
			render.InsufficientBalance(w, receipt.Balance)
		case errors.Is(err, apperrors.ErrInvalidAmount):
			render.ServiceError(w, "Invalid amount", http.StatusUnprocessableEntity)
		default:
			l.Error("Failed to use points", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleRefund(pointService pointService, l logger.Logger) http.Handler {
	type request struct {
		Amount        int64  `json:"amount" validate:"required,gt=0"`
		Description   string `json:"description"`
		ReferenceType string `json:"reference_type"`
		ReferenceID   string `json:"reference_id"`
	}

	type response struct {
		Balance int64 `json:"balance"`
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

		balance, err := pointService.RefundPoints(r.Context(), userID, data.Amount, data.Description, data.ReferenceType, data.ReferenceID)

		switch {
		case err == nil:
			render.JSON(w, response{Balance: balance})
		case errors.Is(err, apperrors.ErrInvalidAmount):
			render.ServiceError(w, "Invalid amount", http.StatusUnprocessableEntity)
		default:
			l.Error("Failed to refund points", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleCheckIn(pointService pointService, l logger.Logger) http.Handler {
	type response struct {
		AlreadyCheckedIn bool  `json:"already_checked_in"`
		Reward           int64 `json:"reward"`
		Balance          int64 `json:"balance"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		result, err := pointService.DailyCheckIn(r.Context(), userID)

		switch err {
		case nil:
			render.JSON(w, response{
				AlreadyCheckedIn: result.AlreadyCheckedIn,
				Reward:           result.Reward,
				Balance:          result.Balance,
			})
		default:
			l.Error("Failed to check in", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleTimerStatus(pointService pointService, l logger.Logger) http.Handler {
	type response struct {
		Current           int   `json:"current"`
		Max               int   `json:"max"`
		Earned            int   `json:"earned"`
		NextRefillSeconds int64 `json:"next_refill_seconds"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		status, err := pointService.GetTimerStatus(r.Context(), userID)

		switch err {
		case nil:
			render.JSON(w, response{
				Current:           status.Current,
				Max:               status.Max,
				Earned:            status.Earned,
				NextRefillSeconds: status.NextRefillSeconds,
			})
		default:
			l.Error("Failed to get timer status", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
