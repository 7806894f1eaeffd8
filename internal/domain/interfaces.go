package domain

import (
	"context"
	"time"

	"scams/internal/models"
)

type BookingRepository interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	CreateBookingWithLock(ctx context.Context, booking *models.Booking) error
	UpdateBookingWithLock(ctx context.Context, booking *models.Booking, fromVersion int64) error
	UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
	CountBookings(ctx context.Context, filter models.BookingFilter) (int, error)
	CompletePastBookings(ctx context.Context, now time.Time) ([]*models.Booking, error)
	BookingCounts(ctx context.Context, today string) (upcoming, todayCount, cancelled int, err error)
}

type RoomRepository interface {
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
	ListRooms(ctx context.Context, filter models.RoomFilter) ([]*models.Room, error)
	CreateRoom(ctx context.Context, room *models.Room) error
	UpdateRoom(ctx context.Context, room *models.Room) error
	UpdateRoomStatus(ctx context.Context, id int64, status string) error
	DeleteRoom(ctx context.Context, id int64) error
	CountRooms(ctx context.Context) (total, inMaintenance int, err error)
	ListBuildings(ctx context.Context) ([]models.Building, error)
	ListDevices(ctx context.Context) ([]string, error)
}

type MaintenanceRepository interface {
	CreateMaintenance(ctx context.Context, m *models.MaintenanceSchedule) error
	GetMaintenance(ctx context.Context, id int64) (*models.MaintenanceSchedule, error)
	ListMaintenance(ctx context.Context, roomID int64) ([]*models.MaintenanceSchedule, error)
	ActiveMaintenance(ctx context.Context, roomID int64, date string) (*models.MaintenanceSchedule, error)
	UpdateMaintenanceStatus(ctx context.Context, id int64, status string) error
	DeleteMaintenance(ctx context.Context, id int64) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	UpdateUserPassword(ctx context.Context, id int64, hashed string) error
	CountUsers(ctx context.Context) (int, error)
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID int64) error
	MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error)
}

type TaskRepository interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	GetPendingTasks(ctx context.Context, limit int) ([]*models.Task, error)
	ClaimTask(ctx context.Context, id int64) (bool, error)
	RequeueProcessingTasks(ctx context.Context) (int64, error)
	UpdateTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// Repository is everything the SQLite database provides.
type Repository interface {
	BookingRepository
	RoomRepository
	MaintenanceRepository
	UserRepository
	NotificationRepository
	TaskRepository
}

// SessionStore keeps sign-in sessions and sign-in attempt counters.
// GetSession returns nil, nil for an unknown token.
type SessionStore interface {
	GetSession(ctx context.Context, token string) (*models.Session, error)
	SetSession(ctx context.Context, session *models.Session) error
	DeleteSession(ctx context.Context, token string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RoomLocker serializes writers for one room and date.
type RoomLocker interface {
	Acquire(ctx context.Context, roomID int64, date string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, roomID int64, date, token string) error
}

// RoomCache holds the unfiltered room list. Get returns nil, nil on a miss.
type RoomCache interface {
	GetRooms(ctx context.Context) ([]*models.Room, error)
	SetRooms(ctx context.Context, rooms []*models.Room) error
	Invalidate(ctx context.Context) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// TaskEnqueuer schedules background delivery of a booking-related task.
type TaskEnqueuer interface {
	EnqueueTask(ctx context.Context, taskType string, bookingID int64, payload interface{}) error
}
