package api

import (
	"net/http"

	"scams/internal/models"
)

func (s *HTTPServer) handleListRooms(w http.ResponseWriter, r *http.Request) {
	building, ok := queryInt(w, r, "building_id")
	if !ok {
		return
	}
	capacity, ok := queryInt(w, r, "capacity")
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := models.RoomFilter{
		BuildingID:  building,
		MinCapacity: int(capacity),
		Devices:     splitCSV(q.Get("devices")),
		Date:        q.Get("date"),
		StartTime:   q.Get("start_time"),
		EndTime:     q.Get("end_time"),
	}
	rooms, err := s.svc.Rooms.ListRooms(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *HTTPServer) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	room, err := s.svc.Rooms.GetRoom(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *HTTPServer) roomDate(r *http.Request) string {
	if date := r.URL.Query().Get("date"); date != "" {
		return date
	}
	return s.svc.Bookings.Today()
}

func (s *HTTPServer) handleRoomSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	list, err := s.svc.Rooms.Schedule(r.Context(), id, s.roomDate(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Booking{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) handleRoomSlots(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	slots, err := s.svc.Rooms.Slots(r.Context(), id, s.roomDate(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (s *HTTPServer) handleBuildings(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Rooms.Buildings(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Building{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) handleDevices(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Rooms.Devices(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
