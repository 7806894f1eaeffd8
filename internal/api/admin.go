package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"scams/internal/export"
	"scams/internal/models"
	"scams/internal/service"
)

type roomRequest struct {
	Name         string   `json:"name"`
	BuildingID   int64    `json:"building_id"`
	BuildingName string   `json:"building_name"`
	FloorNumber  int      `json:"floor_number"`
	Capacity     int      `json:"capacity"`
	Description  string   `json:"description"`
	Type         string   `json:"type"`
	ImageURL     string   `json:"image_url"`
	Devices      []string `json:"devices"`
	Status       string   `json:"status"`
}

func (req roomRequest) room(id int64) *models.Room {
	return &models.Room{
		ID:           id,
		Name:         req.Name,
		BuildingID:   req.BuildingID,
		BuildingName: req.BuildingName,
		FloorNumber:  req.FloorNumber,
		Capacity:     req.Capacity,
		Description:  req.Description,
		Type:         req.Type,
		ImageURL:     req.ImageURL,
		Devices:      req.Devices,
		Status:       req.Status,
	}
}

func (s *HTTPServer) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	room := req.room(0)
	if err := s.svc.Rooms.CreateRoom(r.Context(), currentUser(r), room); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (s *HTTPServer) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req roomRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	room := req.room(id)
	if err := s.svc.Rooms.UpdateRoom(r.Context(), currentUser(r), room); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *HTTPServer) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Rooms.DeleteRoom(r.Context(), currentUser(r), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Users.ListUsers(r.Context(), currentUser(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *HTTPServer) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req service.UserUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.svc.Users.UpdateUser(r.Context(), currentUser(r), id, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleListMaintenance(w http.ResponseWriter, r *http.Request) {
	roomID, ok := queryInt(w, r, "room_id")
	if !ok {
		return
	}
	list, err := s.svc.Maintenance.List(r.Context(), currentUser(r), roomID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []*models.MaintenanceSchedule{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) handleCreateMaintenance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomID    int64  `json:"room_id"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
		Reason    string `json:"reason"`
		Status    string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	m := &models.MaintenanceSchedule{
		RoomID: req.RoomID, StartDate: req.StartDate, EndDate: req.EndDate, Reason: req.Reason, Status: req.Status,
	}
	if err := s.svc.Maintenance.Create(r.Context(), currentUser(r), m); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *HTTPServer) handleMaintenanceStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := s.svc.Maintenance.UpdateStatus(r.Context(), currentUser(r), id, req.Status)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *HTTPServer) handleDeleteMaintenance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Maintenance.Delete(r.Context(), currentUser(r), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleUtilization(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Analytics.Utilization(r.Context(), currentUser(r), r.URL.Query().Get("date"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *HTTPServer) handleDepartments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	usage, err := s.svc.Analytics.Departments(r.Context(), currentUser(r), q.Get("from"), q.Get("to"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

func (s *HTTPServer) handleOverview(w http.ResponseWriter, r *http.Request) {
	o, err := s.svc.Analytics.Overview(r.Context(), currentUser(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}
	bookings, err := s.svc.Bookings.BookingsInRange(r.Context(), from, to)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.Bookings(&buf, bookings, from, to); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeFile(w, export.BookingsFileName(from, to), buf.Bytes())
}

func (s *HTTPServer) handleExportUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Users.ListUsers(r.Context(), currentUser(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.Users(&buf, users); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeFile(w, export.UsersFileName(time.Now()), buf.Bytes())
}

func writeFile(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
