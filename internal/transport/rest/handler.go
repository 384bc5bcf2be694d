package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"pawpay/internal/clients"
	"pawpay/internal/domain"
	"pawpay/internal/service"
	ws "pawpay/internal/transport/websocket"
)

type EnrollmentAPI interface {
	CreateEnrollment(ctx context.Context, clinicID string, owner service.OwnerInput, billAmountCents int64, actor domain.Actor, now time.Time) (*service.EnrollmentResult, error)
	GetEnrollmentSummary(ctx context.Context, planID string) (*service.EnrollmentSummary, error)
	CancelEnrollment(ctx context.Context, planID string, actor domain.Actor) error
}

type LifecycleAPI interface {
	FindPaymentByProcessorRef(ctx context.Context, ref string) (*domain.Payment, error)
	HandlePaymentSuccess(ctx context.Context, paymentID, externalRef string, actor domain.Actor) error
	HandlePaymentFailure(ctx context.Context, paymentID, reason string, actor domain.Actor) error
	RetryPayment(ctx context.Context, paymentID string, actor domain.Actor) error
}

type PayoutAPI interface {
	ProcessClinicPayout(ctx context.Context, paymentID string, actor domain.Actor) (*domain.Payout, error)
	ProcessPendingPayouts(ctx context.Context) (*service.PayoutSweepSummary, error)
}

type RiskPoolAPI interface {
	Balance(ctx context.Context) (int64, error)
	Health(ctx context.Context) (domain.RiskPoolHealth, error)
}

type ClinicAPI interface {
	CreateClinic(ctx context.Context, in service.ClinicInput, actor domain.Actor) (*domain.Clinic, error)
	GetClinic(ctx context.Context, id string) (*domain.Clinic, error)
	SetPayoutAccount(ctx context.Context, clinicID, accountRef string, actor domain.Actor) error
	ActivateClinic(ctx context.Context, clinicID string, actor domain.Actor) error
	SuspendClinic(ctx context.Context, clinicID, reason string, actor domain.Actor) error
}

type StatementAPI interface {
	StartStatement(ctx context.Context, clinicID string, from, to time.Time) (string, error)
	GetStatement(ctx context.Context, statementID, clinicID string) (*service.StatementStatus, error)
	ListStatements(ctx context.Context, clinicID string) ([]service.StatementStatus, error)
}

type Handler struct {
	enrollments EnrollmentAPI
	lifecycle   LifecycleAPI
	payouts     PayoutAPI
	riskPool    RiskPoolAPI
	clinics     ClinicAPI
	statements  StatementAPI
	redis       *clients.RedisClient
	hub         *ws.Hub
	log         *zap.Logger
}

func NewHandler(
	enrollments EnrollmentAPI,
	lifecycle LifecycleAPI,
	payouts PayoutAPI,
	riskPool RiskPoolAPI,
	clinics ClinicAPI,
	statements StatementAPI,
	redis *clients.RedisClient,
	hub *ws.Hub,
	log *zap.Logger,
) *Handler {
	return &Handler{
		enrollments: enrollments,
		lifecycle:   lifecycle,
		payouts:     payouts,
		riskPool:    riskPool,
		clinics:     clinics,
		statements:  statements,
		redis:       redis,
		hub:         hub,
		log:         log,
	}
}

func (h *Handler) InitRouter() *chi.Mux {
	return h.InitRouterWithAuth(nil)
}

func (h *Handler) InitRouterWithAuth(authMiddleware func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		Success(w, "ok", nil)
	})

	// processor callbacks are signed upstream, not actor-authenticated
	r.Post("/webhooks/processor", h.processorWebhook)

	r.Group(func(r chi.Router) {
		if authMiddleware != nil {
			r.Use(authMiddleware)
		}

		r.Route("/clinics", func(r chi.Router) {
			r.Post("/", h.createClinic)
			r.Get("/{clinic_id}", h.getClinic)
			r.Post("/{clinic_id}/payout-account", h.setPayoutAccount)
			r.Post("/{clinic_id}/activate", h.activateClinic)
			r.Post("/{clinic_id}/suspend", h.suspendClinic)

			r.Post("/{clinic_id}/statements", h.startStatement)
			r.Get("/{clinic_id}/statements", h.listStatements)
			r.Get("/{clinic_id}/statements/{statement_id}", h.getStatement)
		})

		r.Route("/enrollments", func(r chi.Router) {
			r.Post("/", h.createEnrollment)
			r.Get("/{plan_id}", h.getEnrollment)
			r.Delete("/{plan_id}", h.cancelEnrollment)
		})

		r.Post("/payments/{payment_id}/retry", h.retryPayment)

		r.Route("/payouts", func(r chi.Router) {
			r.Post("/payments/{payment_id}", h.processPayout)
			r.Post("/sweep", h.sweepPayouts)
		})

		r.Route("/risk-pool", func(r chi.Router) {
			r.Get("/balance", h.riskPoolBalance)
			r.Get("/health", h.riskPoolHealth)
		})
	})

	if h.hub != nil {
		r.Get("/ws/clinics/{clinic_id}", func(w http.ResponseWriter, r *http.Request) {
			h.hub.HandleWebSocket(w, r, chi.URLParam(r, "clinic_id"))
		})
	}

	return r
}
