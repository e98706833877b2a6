package utils

import (
	"fmt"
	"net/http"
	"strings"
)

// SetupSSEHeaders prepares the response for a Server-Sent Events stream.
func SetupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// SendSSEDelta writes one plain-text answer fragment as an SSE data frame
// and flushes it immediately. Embedded newlines become additional data
// lines of the same frame, as the protocol requires.
func SendSSEDelta(w http.ResponseWriter, flusher http.Flusher, delta string) error {
	for _, line := range strings.Split(delta, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprint(w, "\n"); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
