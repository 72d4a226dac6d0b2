package routers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/AlexeySalamakhin/storefront/cmd/storefront/models"
	"github.com/AlexeySalamakhin/storefront/cmd/storefront/service"
)

type LedgerService interface {
	GetBalance(ctx context.Context, userID, email string) (int64, error)
	GetHistory(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error)
	AllBalances(ctx context.Context) (map[string]int64, error)
	Submit(ctx context.Context, caller models.Identity, req models.LoyaltyRequest, amount int64) (int64, error)
	RedemptionCap(ctx context.Context, caller models.Identity, in service.RedemptionInput) (int64, int64, error)
}

type OrderService interface {
	CreateOrder(ctx context.Context, caller models.Identity, req models.CreateOrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, caller models.Identity, id string) (*models.Order, error)
	ListOrders(ctx context.Context, caller models.Identity) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, service.Outcome, error)
}

type Handler struct {
	LedgerService LedgerService
	OrderService  OrderService
	Logger        *zap.Logger
	HistoryLimit  int
}

func NewHandler(ledgerService *service.LedgerService, orderService *service.OrderService, logger *zap.Logger, historyLimit int) *Handler {
	return &Handler{LedgerService: ledgerService, OrderService: orderService, Logger: logger, HistoryLimit: historyLimit}
}

// GetLoyaltyHandler serves the balance, the history (?history=1) or, for
// admins, every balance keyed by email (?all=true).
func (h *Handler) GetLoyaltyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := GetIdentityFromContext(r.Context())
		q := r.URL.Query()

		if flag(q.Get("all")) {
			if !caller.Admin {
				h.writeError(w, service.ErrForbidden)
				return
			}
			all, err := h.LedgerService.AllBalances(r.Context())
			if err != nil {
				h.writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, all)
			return
		}

		if flag(q.Get("history")) {
			limit := h.HistoryLimit
			if raw := q.Get("limit"); raw != "" {
				n, err := strconv.Atoi(raw)
				if err != nil {
					writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "limit must be an integer"})
					return
				}
				limit = n
			}
			// the balance row is created on first contact, history or not
			if _, err := h.LedgerService.GetBalance(r.Context(), caller.UserID, caller.Email); err != nil {
				h.writeError(w, err)
				return
			}
			history, err := h.LedgerService.GetHistory(r.Context(), caller.UserID, limit)
			if err != nil {
				h.writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, models.HistoryResponse{History: history})
			return
		}

		points, err := h.LedgerService.GetBalance(r.Context(), caller.UserID, caller.Email)
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, models.PointsResponse{Points: points})
	}
}

func (h *Handler) PostLoyaltyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := GetIdentityFromContext(r.Context())
		var req models.LoyaltyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "неверный формат запроса"})
			return
		}
		amount, err := service.PointsFromFloat(req.Amount)
		if err != nil {
			h.writeError(w, err)
			return
		}
		points, err := h.LedgerService.Submit(r.Context(), caller, req, amount)
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, models.PointsResponse{Points: points})
	}
}

// GetRedemptionCapHandler answers how many points the caller may redeem on
// a cart: ?subtotal=&discount=&pointsDiscount=
func (h *Handler) GetRedemptionCapHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := GetIdentityFromContext(r.Context())
		q := r.URL.Query()
		var in service.RedemptionInput
		for _, p := range []struct {
			name string
			dst  *decimal.Decimal
		}{
			{"subtotal", &in.Subtotal},
			{"discount", &in.ExistingDiscount},
			{"pointsDiscount", &in.AppliedPointsDiscount},
		} {
			raw := q.Get(p.name)
			if raw == "" {
				continue
			}
			v, err := decimal.NewFromString(raw)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: p.name + " must be a number"})
				return
			}
			*p.dst = v
		}
		maxPoints, balance, err := h.LedgerService.RedemptionCap(r.Context(), caller, in)
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, models.CapResponse{MaxRedeemable: maxPoints, Balance: balance})
	}
}

func (h *Handler) CreateOrderHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := GetIdentityFromContext(r.Context())
		var req models.CreateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "неверный формат запроса"})
			return
		}
		order, err := h.OrderService.CreateOrder(r.Context(), caller, req)
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, order)
	}
}

func (h *Handler) GetOrdersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := GetIdentityFromContext(r.Context())
		orders, err := h.OrderService.ListOrders(r.Context(), caller)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if len(orders) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, orders)
	}
}

func (h *Handler) GetOrderHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := GetIdentityFromContext(r.Context())
		order, err := h.OrderService.GetOrder(r.Context(), caller, chi.URLParam(r, "id"))
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

// UpdateOrderStatusHandler never fails because of the loyalty side effect;
// its result is reported in the "loyalty" field.
func (h *Handler) UpdateOrderStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := GetIdentityFromContext(r.Context())
		if !caller.Admin {
			h.writeError(w, service.ErrForbidden)
			return
		}
		var req models.UpdateOrderStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "неверный формат запроса"})
			return
		}
		order, outcome, err := h.OrderService.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, models.OrderStatusResponse{Order: *order, Loyalty: string(outcome)})
	}
}

func (h *Handler) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidOp),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidOrder):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInsufficientBalance):
		status = http.StatusPaymentRequired
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrOrderNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		h.Logger.Error("Ошибка обработки запроса", zap.Error(err))
		writeJSON(w, status, models.ErrorResponse{Error: "внутренняя ошибка сервера"})
		return
	}
	writeJSON(w, status, models.ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func flag(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func SetupRoutersWithLogger(h *Handler, logger *zap.Logger, jwtSecret string, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HealthHandler())

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(jwtSecret))

			r.Get("/loyalty", h.GetLoyaltyHandler())
			r.Post("/loyalty", h.PostLoyaltyHandler())
			r.Get("/loyalty/cap", h.GetRedemptionCapHandler())

			r.Post("/orders", h.CreateOrderHandler())
			r.Get("/orders", h.GetOrdersHandler())
			r.Get("/orders/{id}", h.GetOrderHandler())
			r.Put("/orders/{id}", h.UpdateOrderStatusHandler())
			r.Patch("/orders/{id}", h.UpdateOrderStatusHandler())
		})
	})
	return r
}
