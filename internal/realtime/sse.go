package realtime

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// heartbeatPeriod keeps intermediaries from reaping an idle SSE stream.
const heartbeatPeriod = 15 * time.Second

// StreamSSE relays a room subscription as server-sent events until ctx is
// cancelled or the subscription closes. Frames use the same JSON payload as
// the websocket surface.
func StreamSSE(ctx context.Context, w io.Writer, flusher http.Flusher, sub *Subscriber) {
	writeSSE(w, "connected", `{"type":"connected"}`)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatPeriod)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			writeSSE(w, "heartbeat", fmt.Sprintf(`{"timestamp":%q}`, time.Now().UTC().Format(time.RFC3339)))
			flusher.Flush()
		case payload, ok := <-sub.C():
			if !ok {
				return
			}
			writeSSE(w, "message", string(payload))
			flusher.Flush()
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
