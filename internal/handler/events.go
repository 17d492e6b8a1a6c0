package handler

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/ticketing-system/internal/model"
)

// eventRequest описывает поля события в JSON или multipart-форме. Отсутствующие поля равны nil.
type eventRequest struct {
	Title            *string          `json:"title"`
	Date             *time.Time       `json:"date"`
	ShortDescription *string          `json:"shortDescription"`
	FullDescription  *string          `json:"fullDescription"`
	Location         *string          `json:"location"`
	Category         *model.Category  `json:"category"`
	IsPaid           *bool            `json:"isPaid"`
	Price            *decimal.Decimal `json:"price"`
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// decodeEventRequest читает событие из JSON-тела или из multipart-формы.
// Из формы дополнительно читается необязательный файл image.
func (h *Handler) decodeEventRequest(w http.ResponseWriter, r *http.Request) (eventRequest, *model.EventImage, bool) {
	var req eventRequest

	if !isMultipart(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			writeBadRequest(w, "invalid request body")
			return req, nil, false
		}
		return req, nil, true
	}

	if err := parseMultipart(w, r); err != nil {
		h.writeFormError(w, r, err)
		return req, nil, false
	}

	req, err := parseEventForm(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return req, nil, false
	}

	img, err := readImage(r)
	if err != nil {
		h.writeFormError(w, r, err)
		return req, nil, false
	}
	return req, img, true
}

func parseEventForm(r *http.Request) (eventRequest, error) {
	var req eventRequest

	get := func(name string) (string, bool) {
		v := r.MultipartForm.Value[name]
		if len(v) == 0 {
			return "", false
		}
		return v[0], true
	}

	if v, ok := get("title"); ok {
		req.Title = &v
	}
	if v, ok := get("shortDescription"); ok {
		req.ShortDescription = &v
	}
	if v, ok := get("fullDescription"); ok {
		req.FullDescription = &v
	}
	if v, ok := get("location"); ok {
		req.Location = &v
	}
	if v, ok := get("category"); ok {
		c := model.Category(v)
		req.Category = &c
	}
	if v, ok := get("date"); ok {
		d, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return req, errors.New("date must be RFC 3339")
		}
		req.Date = &d
	}
	if v, ok := get("isPaid"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, errors.New("isPaid must be true or false")
		}
		req.IsPaid = &b
	}
	if v, ok := get("price"); ok && v != "" {
		p, err := decimal.NewFromString(v)
		if err != nil {
			return req, errors.New("price must be a decimal number")
		}
		req.Price = &p
	}

	return req, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

// ListEvents возвращает предстоящие события с фильтрами category, isPaid и search.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := model.EventFilter{
		Category: model.Category(q.Get("category")),
		Search:   q.Get("search"),
	}
	if v := q.Get("isPaid"); v != "" {
		isPaid, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "isPaid must be true or false")
			return
		}
		filter.IsPaid = &isPaid
	}

	events, err := h.service.ListEvents(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, events)
}

// GetEvent возвращает событие по идентификатору.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	event, err := h.service.GetEvent(r.Context(), eventID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, event)
}

// CreateEvent создаёт событие от имени текущего пользователя. Принимает JSON
// или multipart-форму с необязательным изображением в поле image.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	req, img, ok := h.decodeEventRequest(w, r)
	if !ok {
		return
	}

	event, err := h.service.CreateEvent(r.Context(), userID, model.EventInput{
		Title:            deref(req.Title),
		Date:             deref(req.Date),
		ShortDescription: deref(req.ShortDescription),
		FullDescription:  deref(req.FullDescription),
		Location:         deref(req.Location),
		Category:         deref(req.Category),
		IsPaid:           deref(req.IsPaid),
		Price:            nullDecimal(req.Price),
		Image:            img,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, event)
}

// UpdateEvent изменяет событие. Доступно только создателю.
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	req, img, ok := h.decodeEventRequest(w, r)
	if !ok {
		return
	}

	event, err := h.service.UpdateEvent(r.Context(), eventID, userID, model.EventPatch{
		Title:            req.Title,
		Date:             req.Date,
		ShortDescription: req.ShortDescription,
		FullDescription:  req.FullDescription,
		Location:         req.Location,
		Category:         req.Category,
		IsPaid:           req.IsPaid,
		Price:            nullDecimal(req.Price),
		Image:            img,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, event)
}

// CancelEvent отменяет событие и возвращает средства покупателям.
func (h *Handler) CancelEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	res, err := h.service.CancelEvent(r.Context(), eventID, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, res)
}

// MyEvents возвращает бесплатные и платные события текущего пользователя.
func (h *Handler) MyEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	events, err := h.service.GetUserEvents(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, events)
}

// MyAttendances возвращает события, в которых текущий пользователь подтвердил участие.
func (h *Handler) MyAttendances(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	events, err := h.service.GetUserAttendances(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, events)
}
