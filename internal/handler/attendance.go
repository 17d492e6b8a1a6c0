package handler

import "net/http"

// ConfirmAttendance подтверждает участие текущего пользователя в бесплатном событии.
func (h *Handler) ConfirmAttendance(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(w, r, "eventId")
	if !ok {
		return
	}

	att, err := h.service.ConfirmAttendance(r.Context(), userID, eventID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, att)
}

// CancelAttendance отменяет участие текущего пользователя.
func (h *Handler) CancelAttendance(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(w, r, "eventId")
	if !ok {
		return
	}

	if err := h.service.CancelAttendance(r.Context(), userID, eventID); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{OK: true})
}
