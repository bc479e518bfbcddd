package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/samkok24/char-chat-project-sub001/internal/handlers/middleware"
	"github.com/samkok24/char-chat-project-sub001/internal/logger"
	"github.com/samkok24/char-chat-project-sub001/internal/models"
	"github.com/samkok24/char-chat-project-sub001/internal/rubycache"
	"github.com/samkok24/char-chat-project-sub001/internal/service/point"
	"github.com/samkok24/char-chat-project-sub001/internal/service/webhook"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	pointService pointService,
	webhookService webhookService,
	tokenParser tokenParser,
	webhookSecret string,
	logger logger.Logger,
) http.Handler {
	authMiddleware := middleware.AuthMiddleware(tokenParser)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}

	apipoints := http.NewServeMux()
	apipoints.Handle("GET /balance", withAuth(handleBalance(pointService, logger)))
	apipoints.Handle("GET /transactions", withAuth(handleTransactions(pointService, logger)))
	apipoints.Handle("GET /recent", withAuth(handleRecentSpends(pointService, logger)))
	apipoints.Handle("POST /charge", withAuth(handleCharge(pointService, logger)))
	apipoints.Handle("POST /use", withAuth(handleUse(pointService, logger)))
	apipoints.Handle("POST /refund", withAuth(handleRefund(pointService, logger)))
	apipoints.Handle("POST /checkin", withAuth(handleCheckIn(pointService, logger)))
	apipoints.Handle("GET /timer", withAuth(handleTimerStatus(pointService, logger)))

	apichat := http.NewServeMux()
	apichat.Handle("POST /deduct", withAuth(handleChatDeduct(pointService, logger)))
	apichat.Handle("POST /refund", withAuth(handleChatRefund(pointService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/points/", http.StripPrefix("/api/points", apipoints))
	root.Handle("/api/chat/", http.StripPrefix("/api/chat", apichat))
	root.Handle("POST /api/payments/orders", withAuth(handleCreatePaymentOrder(webhookService, logger)))
	root.Handle("POST /api/webhooks/payment", handlePaymentWebhook(webhookService, webhookSecret, logger))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type tokenParser interface {
	ParseUserID(tokenString string) (uuid.UUID, error)
}

type pointService interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	ChargePoints(ctx context.Context, userID uuid.UUID, amount int64, description string, refType string, refID string) (int64, error)
	RefundPoints(ctx context.Context, userID uuid.UUID, amount int64, description string, refType string, refID string) (int64, error)

	// Has to return apperrors.ErrBalanceInsufficient if the user can't
	// afford the spend
	UsePointsAtomic(ctx context.Context, userID uuid.UUID, amount int64, reason string, refType string, refID string) (models.SpendReceipt, error)

	Transactions(ctx context.Context, userID uuid.UUID, kinds []string, limit int, offset int) ([]models.LedgerEntry, error)
	RecentSpends(ctx context.Context, userID uuid.UUID) ([]rubycache.SpendRecord, error)

	DeductChatTurn(ctx context.Context, userID uuid.UUID, modelID string) (models.SpendReceipt, int64, error)
	RefundChatTurn(ctx context.Context, userID uuid.UUID, modelID string, txID uuid.UUID) (int64, error)

	DailyCheckIn(ctx context.Context, userID uuid.UUID) (point.CheckInResult, error)
	GetTimerStatus(ctx context.Context, userID uuid.UUID) (models.TimerStatus, error)
}

type webhookService interface {
	CreateOrder(ctx context.Context, orderID uuid.UUID, userID uuid.UUID, amount int64) (models.PaymentOrder, error)

	// Applies the event at most once, redeliveries are reported as
	// already processed
	Process(ctx context.Context, event webhook.Event) (webhook.Result, error)
}
