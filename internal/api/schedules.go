package api

import (
	"net/http"

	"scams/internal/models"
	"scams/internal/service"
)

func (s *HTTPServer) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	var filter models.BookingFilter
	var ok bool
	if filter.RoomID, ok = queryInt(w, r, "room_id"); !ok {
		return
	}
	if filter.UserID, ok = queryInt(w, r, "user_id"); !ok {
		return
	}
	if filter.BuildingID, ok = queryInt(w, r, "building_id"); !ok {
		return
	}
	q := r.URL.Query()
	filter.Date = q.Get("date")
	filter.DateFrom = q.Get("from")
	filter.DateTo = q.Get("to")
	if status := q.Get("status"); status != "" {
		if !models.ValidStatus(status) {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		filter.Status = status
	}

	list, err := s.svc.Bookings.ListBookings(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Booking{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req service.BookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := s.svc.Bookings.CreateBooking(r.Context(), currentUser(r), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *HTTPServer) handleMySchedules(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset")
	if !ok {
		return
	}
	list, total, err := s.svc.Bookings.ListMine(r.Context(), currentUser(r), int(limit), int(offset))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list, "total": total})
}

func (s *HTTPServer) handleCheckConflict(w http.ResponseWriter, r *http.Request) {
	var req service.CheckRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.svc.Bookings.CheckConflict(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if res.Conflicting == nil {
		res.Conflicting = []*models.Booking{}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b, err := s.svc.Bookings.GetBooking(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req service.BookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := s.svc.Bookings.UpdateBooking(r.Context(), currentUser(r), id, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleCancelSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b, err := s.svc.Bookings.CancelBooking(r.Context(), currentUser(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleCompleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b, err := s.svc.Bookings.CompleteBooking(r.Context(), currentUser(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
