package controllers

import (
	"net/http"

	relaysvc "github.com/Talhamuhammadali/event-driven-mircorservice/internal/services/relay"
)

// sseSink adapts an http.ResponseWriter into a relay Sink that emits
// Server-Sent Events.
type sseSink struct {
	w http.ResponseWriter
}

// Send writes one frame as an SSE data event.
//
// The payload goes out verbatim between the "data: " prefix and the blank
// line that ends the event; clients receive the producer's bytes unchanged.
func (s sseSink) Send(f relaysvc.Frame) error {
	if _, err := s.w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := s.w.Write(f.Payload); err != nil {
		return err
	}
	_, err := s.w.Write([]byte("\n\n"))
	return err
}

// Flush pushes buffered bytes to the client when the writer supports it.
func (s sseSink) Flush() error {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
