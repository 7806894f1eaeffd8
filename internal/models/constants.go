package models

const (
	StatusUpcoming  = "upcoming"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

const (
	RoomAvailable   = "available"
	RoomMaintenance = "maintenance"
)

const (
	MaintenanceScheduled  = "scheduled"
	MaintenanceInProgress = "in-progress"
	MaintenanceCompleted  = "completed"
)

const (
	RoleEmployee = "employee"
	RoleAdmin    = "admin"

	UserActive   = "active"
	UserInactive = "inactive"
)

const (
	NotificationConfirmation = "confirmation"
	NotificationReminder     = "reminder"
	NotificationChange       = "change"
	NotificationCancellation = "cancellation"
	NotificationSystem       = "system"
	NotificationConflict     = "conflict"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

const (
	// DefaultMinDurationMinutes минимальная длительность бронирования
	DefaultMinDurationMinutes = 30

	// DefaultMaxDurationMinutes максимальная длительность бронирования (8 часов)
	DefaultMaxDurationMinutes = 8 * 60

	// DefaultMaxAdvanceDays насколько вперёд можно бронировать
	DefaultMaxAdvanceDays = 90

	// DefaultWorkdayMinutes рабочий день, относительно которого считается загрузка
	DefaultWorkdayMinutes = 8 * 60

	// DefaultAlternativesLimit сколько альтернативных комнат предлагать при конфликте
	DefaultAlternativesLimit = 3

	// DefaultSessionTTL время жизни сессии в секундах
	DefaultSessionTTL = 24 * 60 * 60

	// SignInRateLimit попыток входа в окне
	SignInRateLimit = 10

	// SignInRateWindow окно ограничения попыток входа в секундах
	SignInRateWindow = 5 * 60

	// DefaultPageSize размер страницы для "моих" бронирований
	DefaultPageSize = 10

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 128
)

// ValidStatus reports whether s is a known booking status.
func ValidStatus(s string) bool {
	switch s {
	case StatusUpcoming, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}
