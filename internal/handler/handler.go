// Package handler содержит HTTP-обработчики API сервиса продажи билетов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/ticketing-system/internal/middleware"
	"github.com/mmeshcher/ticketing-system/internal/model"
	"github.com/mmeshcher/ticketing-system/internal/service"
)

const maxJSONBody = 1 << 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, r model.Registration) (*model.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (*model.User, error)
	GetProfile(ctx context.Context, userID int64) (*model.User, error)
	DeleteUser(ctx context.Context, userID int64) error

	GetBalance(ctx context.Context, userID int64) (*model.Balance, error)
	Credit(ctx context.Context, userID int64, amount decimal.Decimal) (*model.Balance, error)

	ListEvents(ctx context.Context, filter model.EventFilter) ([]model.EventDetails, error)
	GetEvent(ctx context.Context, eventID int64) (*model.EventDetails, error)
	CreateEvent(ctx context.Context, creatorID int64, in model.EventInput) (*model.Event, error)
	UpdateEvent(ctx context.Context, eventID, requesterID int64, patch model.EventPatch) (*model.Event, error)
	CancelEvent(ctx context.Context, eventID, requesterID int64) (*model.Cancellation, error)
	GetUserEvents(ctx context.Context, userID int64) (*model.UserEvents, error)
	GetUserAttendances(ctx context.Context, userID int64) ([]model.Event, error)

	SetEventImage(ctx context.Context, eventID, requesterID int64, img model.EventImage) error
	GetEventImage(ctx context.Context, eventID int64) (*model.EventImage, error)
	DeleteEventImage(ctx context.Context, eventID, requesterID int64) error

	ConfirmAttendance(ctx context.Context, userID, eventID int64) (*model.Attendance, error)
	CancelAttendance(ctx context.Context, userID, eventID int64) error

	PurchaseTickets(ctx context.Context, userID, eventID int64, quantity int) (*model.PurchaseWithEvent, error)
	GetUserPurchases(ctx context.Context, userID int64) ([]model.PurchaseWithEvent, error)

	Ping(ctx context.Context) error
}

// Handler реализует HTTP-обработчики API.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type response struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, response{OK: true, Data: data})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, response{Error: message, Code: "bad_request"})
}

// statusFor сопоставляет класс ошибки бизнес-логики HTTP-статусу.
func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindUnauthenticated:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindTransactionFailed:
		return http.StatusConflict
	case service.KindInvalidInput, service.KindConflict, service.KindIllegalState, service.KindInsufficientFunds:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError отвечает клиенту по классу ошибки. Неклассифицированные ошибки логируются
// и скрываются за общим ответом 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		writeJSON(w, statusFor(svcErr.Kind), response{Error: svcErr.Message, Code: svcErr.Code})
		return
	}

	fields := []zap.Field{
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
	}
	if userID, ok := middleware.GetUserIDFromContext(r.Context()); ok {
		fields = append(fields, zap.Int64("user_id", userID))
	}
	h.logger.Error("request failed", fields...)

	writeJSON(w, http.StatusInternalServerError, response{Error: http.StatusText(http.StatusInternalServerError)})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errBadRequest
	}
	return nil
}

// currentUser возвращает идентификатор пользователя, установленный AuthMiddleware.
func currentUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{Error: "unauthorized"})
	}
	return userID, ok
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "invalid "+name)
		return 0, false
	}
	return id, true
}
