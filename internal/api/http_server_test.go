package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"scams/internal/config"
	"scams/internal/database"
	"scams/internal/events"
	"scams/internal/export"
	"scams/internal/models"
	"scams/internal/repository"
	"scams/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "Secret123"

type testEnv struct {
	t      *testing.T
	db     *database.DB
	server *HTTPServer
	ts     *httptest.Server
	room   *models.Room
	spare  *models.Room
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{Admins: []string{"admin@example.com"}}
	cfg.API.Session.CookieName = "access_token"
	cfg.API.Session.TTLSeconds = 3600
	cfg.Security.BcryptCost = bcrypt.MinCost
	cfg.Booking = config.BookingConfig{
		MinDurationMinutes: 30,
		MaxDurationMinutes: 480,
		MaxAdvanceDays:     90,
		WorkdayMinutes:     480,
		DayStart:           "08:00",
		DayEnd:             "18:00",
		SlotMinutes:        60,
		AlternativesLimit:  3,
		LockTTLSeconds:     5,
	}
	for _, m := range mutate {
		m(cfg)
	}

	bus := events.NewEventBus()
	sessions := repository.NewMemorySessionStore(time.Hour)
	svc := Services{
		Bookings:      service.NewBookingService(db, repository.NewMemoryRoomLocker(), bus, cfg.Booking, nil, &logger),
		Rooms:         service.NewRoomService(db, nil, bus, cfg.Booking, &logger),
		Users:         service.NewUserService(db, sessions, cfg, &logger),
		Maintenance:   service.NewMaintenanceService(db, nil, &logger),
		Notifications: service.NewNotificationService(db),
		Analytics:     service.NewAnalyticsService(db, cfg.Booking, nil),
		Health:        db.PingContext,
	}

	env := &testEnv{t: t, db: db, server: NewHTTPServer(cfg.API, svc, bus, &logger)}
	env.ts = httptest.NewServer(env.server.Handler())
	t.Cleanup(func() {
		env.server.stream.Close()
		env.ts.Close()
	})

	ctx := context.Background()
	env.room = &models.Room{Name: "Orion", BuildingID: 1, BuildingName: "Main", Capacity: 8, Devices: []string{"Projector"}, Status: models.RoomAvailable}
	env.spare = &models.Room{Name: "Vega", BuildingID: 1, BuildingName: "Main", Capacity: 10, Status: models.RoomAvailable}
	require.NoError(t, db.CreateRoom(ctx, env.room))
	require.NoError(t, db.CreateRoom(ctx, env.spare))
	return env
}

// do sends a JSON request with an optional bearer token.
func (e *testEnv) do(method, path, token string, body any) *http.Response {
	e.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rd)
	require.NoError(e.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// signUpIn registers an account and returns its session token.
func (e *testEnv) signUpIn(name, email string) string {
	e.t.Helper()
	resp := e.do(http.MethodPost, "/signup", "", map[string]string{
		"full_name": name, "email": email, "password": testPassword, "department": "Sales",
	})
	require.Equal(e.t, http.StatusCreated, resp.StatusCode)

	resp = e.do(http.MethodPost, "/signin", "", map[string]string{"email": email, "password": testPassword})
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		AccessToken string `json:"access_token"`
	}](e.t, resp)
	require.NotEmpty(e.t, body.AccessToken)
	return body.AccessToken
}

func tomorrow() string {
	return time.Now().AddDate(0, 0, 1).Format(models.DateLayout)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(http.MethodPost, "/signup", "", map[string]string{"full_name": "Ada", "email": "ada@example.com", "password": "weak"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Password must be at least 8 characters", decode[map[string]string](t, resp)["error"])

	resp = env.do(http.MethodPost, "/signup", "", map[string]string{"full_name": "Ada", "email": "ada@example.com", "password": testPassword, "nickname": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	token := env.signUpIn("Ada", "ada@example.com")

	resp = env.do(http.MethodPost, "/signup", "", map[string]string{"full_name": "Ada", "email": "ada@example.com", "password": testPassword})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(http.MethodPost, "/signin", "", map[string]string{"email": "ada@example.com", "password": "Wrong1234"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(http.MethodGet, "/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[map[string]any](t, resp)
	assert.Equal(t, "ada@example.com", me["email"])
	assert.Equal(t, "Ada", me["name"])
	assert.NotContains(t, me, "HashedPassword")

	resp = env.do(http.MethodPost, "/me/password", token, map[string]string{"current_password": testPassword, "new_password": "Better456"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(http.MethodPost, "/signout", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.do(http.MethodGet, "/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSessionCookie(t *testing.T) {
	env := newTestEnv(t)
	env.signUpIn("Ada", "ada@example.com")

	resp := env.do(http.MethodPost, "/signin", "", map[string]string{"email": "ada@example.com", "password": testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "access_token" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/me", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)
	me, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer me.Body.Close()
	assert.Equal(t, http.StatusOK, me.StatusCode)
}

func TestBookingFlow(t *testing.T) {
	env := newTestEnv(t)
	ada := env.signUpIn("Ada", "ada@example.com")
	bob := env.signUpIn("Bob", "bob@example.com")
	date := tomorrow()

	resp := env.do(http.MethodPost, "/schedules/", ada, map[string]any{
		"room_id": env.room.ID, "date": date, "start_time": "09:00", "end_time": "10:00",
		"purpose": "Standup", "team_members": []string{"Bob"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[models.Booking](t, resp)
	assert.Equal(t, "Orion", created.RoomName)
	assert.Equal(t, models.StatusUpcoming, created.Status)

	resp = env.do(http.MethodPost, "/schedules", bob, map[string]any{
		"room_id": env.room.ID, "date": date, "start_time": "09:30", "end_time": "10:30",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	conflict := decode[struct {
		Error        string           `json:"error"`
		Conflicting  []models.Booking `json:"conflicting_bookings"`
		Alternatives []models.Room    `json:"alternative_rooms"`
	}](t, resp)
	assert.Equal(t, "This time slot conflicts with 1 existing booking(s)", conflict.Error)
	require.Len(t, conflict.Conflicting, 1)
	assert.Equal(t, created.ID, conflict.Conflicting[0].ID)
	require.Len(t, conflict.Alternatives, 1)
	assert.Equal(t, "Vega", conflict.Alternatives[0].Name)

	resp = env.do(http.MethodPost, "/schedules/check", bob, map[string]any{
		"room_id": env.room.ID, "date": date, "start_time": "10:00", "end_time": "11:00",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	check := decode[map[string]any](t, resp)
	assert.Equal(t, false, check["has_conflict"])

	resp = env.do(http.MethodGet, "/schedules/?date="+date, bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Booking](t, resp), 1)

	resp = env.do(http.MethodGet, "/schedules/me?limit=5", ada, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	mine := decode[struct {
		Items []models.Booking `json:"items"`
		Total int              `json:"total"`
	}](t, resp)
	assert.Equal(t, 1, mine.Total)

	resp = env.do(http.MethodGet, fmt.Sprintf("/rooms/%d/slots?date=%s", env.room.ID, date), ada, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	slots := decode[[]models.TimeSlot](t, resp)
	require.Len(t, slots, 10)
	assert.False(t, slots[1].Available)

	path := fmt.Sprintf("/schedules/%d", created.ID)
	resp = env.do(http.MethodPut, path, bob, map[string]any{
		"room_id": env.room.ID, "date": date, "start_time": "11:00", "end_time": "12:00",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(http.MethodPut, path, ada, map[string]any{
		"room_id": env.room.ID, "date": date, "start_time": "09:30", "end_time": "10:30", "purpose": "Moved",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "09:30", decode[models.Booking](t, resp).StartTime)

	resp = env.do(http.MethodPost, path+"/cancel", ada, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.StatusCancelled, decode[models.Booking](t, resp).Status)

	resp = env.do(http.MethodGet, "/schedules/9999", ada, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = env.do(http.MethodGet, "/schedules/abc", ada, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBookingValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	ada := env.signUpIn("Ada", "ada@example.com")

	resp := env.do(http.MethodPost, "/schedules", ada, map[string]any{
		"room_id": env.room.ID, "date": tomorrow(), "start_time": "09:00", "end_time": "09:15",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Booking must be at least 30 minutes", decode[map[string]string](t, resp)["error"])

	resp = env.do(http.MethodPost, "/schedules", ada, map[string]any{
		"room_id": env.room.ID, "date": "2000-01-01", "start_time": "09:00", "end_time": "10:00",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Cannot book rooms in the past", decode[map[string]string](t, resp)["error"])
}

func TestRoomsEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ada := env.signUpIn("Ada", "ada@example.com")

	resp := env.do(http.MethodGet, "/rooms?capacity=9", ada, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rooms := decode[[]models.Room](t, resp)
	require.Len(t, rooms, 1)
	assert.Equal(t, "Vega", rooms[0].Name)

	resp = env.do(http.MethodGet, "/rooms/?devices=projector", ada, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Room](t, resp), 1)

	resp = env.do(http.MethodGet, "/rooms?capacity=many", ada, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(http.MethodGet, fmt.Sprintf("/rooms/%d", env.room.ID), ada, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Orion", decode[models.Room](t, resp).Name)

	resp = env.do(http.MethodGet, "/buildings", ada, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Building](t, resp), 1)

	resp = env.do(http.MethodGet, "/devices", ada, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"Projector"}, decode[[]string](t, resp))
}

func TestAdminEndpoints(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signUpIn("Root", "admin@example.com")
	ada := env.signUpIn("Ada", "ada@example.com")

	resp := env.do(http.MethodPost, "/admin/rooms", ada, map[string]any{"name": "Nova", "building_id": 2, "capacity": 4})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(http.MethodPost, "/admin/rooms", admin, map[string]any{"name": "Nova", "building_id": 2, "building_name": "Annex", "capacity": 4})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	nova := decode[models.Room](t, resp)
	assert.Equal(t, models.RoomAvailable, nova.Status)

	resp = env.do(http.MethodPost, "/admin/maintenance", admin, map[string]any{
		"room_id": nova.ID, "start_date": tomorrow(), "end_date": tomorrow(), "reason": "Paint", "status": "in-progress",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	m := decode[models.MaintenanceSchedule](t, resp)

	resp = env.do(http.MethodGet, fmt.Sprintf("/rooms/%d", nova.ID), ada, nil)
	assert.Equal(t, models.RoomMaintenance, decode[models.Room](t, resp).Status)

	resp = env.do(http.MethodPut, fmt.Sprintf("/admin/maintenance/%d/status", m.ID), admin, map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(http.MethodDelete, fmt.Sprintf("/admin/rooms/%d", nova.ID), admin, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(http.MethodGet, "/admin/users", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	users := decode[[]models.User](t, resp)
	assert.Len(t, users, 2)

	resp = env.do(http.MethodGet, "/admin/analytics/overview", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, decode[models.Overview](t, resp).TotalUsers)

	resp = env.do(http.MethodGet, "/admin/analytics/utilization", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[models.UtilizationSummary](t, resp).Rooms, 2)
}

func TestExportEndpoints(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signUpIn("Root", "admin@example.com")
	date := tomorrow()

	resp := env.do(http.MethodPost, "/schedules", admin, map[string]any{
		"room_id": env.room.ID, "date": date, "start_time": "09:00", "end_time": "10:00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(http.MethodGet, "/admin/exports/bookings", admin, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(http.MethodGet, "/admin/exports/bookings?from="+date+"&to="+date, admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, export.ContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "bookings_"+date)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")), "xlsx is a zip archive")

	resp = env.do(http.MethodGet, "/admin/exports/users", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNotificationEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ada := env.signUpIn("Ada", "ada@example.com")
	ctx := context.Background()

	user, err := env.db.GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	n := &models.Notification{UserID: user.ID, Type: models.NotificationSystem, Title: "Hi", Message: "Welcome"}
	require.NoError(t, env.db.CreateNotification(ctx, n))

	resp := env.do(http.MethodGet, "/notifications", ada, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Notification](t, resp), 1)

	resp = env.do(http.MethodPost, fmt.Sprintf("/notifications/%d/read", n.ID), ada, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(http.MethodGet, "/notifications?unread=true", ada, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]models.Notification](t, resp))

	resp = env.do(http.MethodPost, "/notifications/read-all", ada, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(0), decode[map[string]int64](t, resp)["updated"])
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.API.RateLimit.RPS = 0.001
		c.API.RateLimit.Burst = 2
	})

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/healthz", "", nil).StatusCode)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/healthz", "", nil).StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, env.do(http.MethodGet, "/healthz", "", nil).StatusCode)

	// a different session gets its own bucket
	assert.NotEqual(t, http.StatusTooManyRequests, env.do(http.MethodGet, "/me", "some-token", nil).StatusCode)
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t)
	ada := env.signUpIn("Ada", "ada@example.com")

	resp := env.do(http.MethodGet, "/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.ts.URL+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+ada)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	require.Equal(t, http.StatusOK, stream.StatusCode)
	assert.Contains(t, stream.Header.Get("Content-Type"), "text/event-stream")

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(stream.Body)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	// the subscriber registers asynchronously, so keep booking until one event arrives
	deadline := time.After(5 * time.Second)
	start := 8
	for {
		resp := env.do(http.MethodPost, "/schedules", ada, map[string]any{
			"room_id": env.room.ID, "date": tomorrow(), "start_time": fmt.Sprintf("%02d:00", start), "end_time": fmt.Sprintf("%02d:30", start),
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		start++

		select {
		case line := <-lines:
			for !strings.HasPrefix(line, "data:") {
				select {
				case line = <-lines:
				case <-deadline:
					t.Fatal("no data line received")
				}
			}
			var p events.BookingEventPayload
			require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &p))
			assert.Equal(t, env.room.ID, p.RoomID)
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("no event received")
		}
		require.Less(t, start, 18, "ran out of slots before an event arrived")
	}
}
