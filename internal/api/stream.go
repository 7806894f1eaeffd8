package api

import (
	"net/http"
	"time"

	"scams/internal/events"

	"github.com/r3labs/sse/v2"
	"github.com/rs/zerolog"
)

const bookingStream = "bookings"

// newEventStream relays booking events from the bus to SSE subscribers.
func newEventStream(bus *events.EventBus, logger *zerolog.Logger) *sse.Server {
	server := sse.New()
	server.AutoReplay = false
	server.AutoStream = false
	server.CreateStream(bookingStream)

	if bus == nil {
		return server
	}
	bus.SubscribeAll(events.BookingEvents, func(e *events.Event) error {
		server.Publish(bookingStream, &sse.Event{
			Event: []byte(e.Type),
			Data:  e.Payload,
		})
		return nil
	})
	logger.Debug().Str("stream", bookingStream).Msg("event stream ready")
	return server
}

func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	// the stream outlives the server write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	q := r.URL.Query()
	q.Set("stream", bookingStream)
	r.URL.RawQuery = q.Encode()
	s.stream.ServeHTTP(w, r)
}
