package handler

import "net/http"

type purchaseRequest struct {
	EventID  int64 `json:"eventId"`
	Quantity int   `json:"quantity"`
}

// PurchaseTickets покупает билеты на платное событие за счёт баланса текущего пользователя.
func (h *Handler) PurchaseTickets(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req purchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.EventID <= 0 {
		writeBadRequest(w, "eventId is required")
		return
	}

	p, err := h.service.PurchaseTickets(r.Context(), userID, req.EventID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, p)
}

// MyPurchases возвращает покупки текущего пользователя, начиная с последней.
func (h *Handler) MyPurchases(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	purchases, err := h.service.GetUserPurchases(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, purchases)
}
