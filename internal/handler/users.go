package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/ticketing-system/internal/middleware"
	"github.com/mmeshcher/ticketing-system/internal/model"
)

type registerRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	DNI       string `json:"dni"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type creditRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type authResponse struct {
	User *model.User `json:"user,omitempty"`
	*middleware.TokenPair
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	u, err := h.service.RegisterUser(r.Context(), model.Registration{
		Username:   req.Username,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		NationalID: req.DNI,
		Email:      req.Email,
		Password:   req.Password,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.respondWithTokens(w, r, http.StatusCreated, u)
}

// Login выполняет аутентификацию пользователя по email и паролю.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeBadRequest(w, "email and password are required")
		return
	}

	u, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.respondWithTokens(w, r, http.StatusOK, u)
}

// Refresh выпускает новую пару токенов по refresh-токену.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	userID, err := h.authMiddleware.ParseRefreshToken(req.RefreshToken)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, response{Error: "invalid refresh token"})
		return
	}

	u, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.respondWithTokens(w, r, http.StatusOK, u)
}

func (h *Handler) respondWithTokens(w http.ResponseWriter, r *http.Request, status int, u *model.User) {
	tokens, err := h.authMiddleware.IssueTokens(u.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, tokens)
	writeData(w, status, authResponse{User: u, TokenPair: tokens})
}

// GetProfile возвращает профиль текущего пользователя.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	u, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, u)
}

// DeleteProfile помечает текущего пользователя удалённым.
func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteUser(r.Context(), userID); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.authMiddleware.ClearAuthCookie(w)
	writeJSON(w, http.StatusOK, response{OK: true})
}

// GetBalance возвращает баланс текущего пользователя.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, balance)
}

// CreditBalance пополняет баланс текущего пользователя.
func (h *Handler) CreditBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req creditRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	balance, err := h.service.Credit(r.Context(), userID, req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, balance)
}
