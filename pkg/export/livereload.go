// This file implements live reload over Server-Sent Events for the preview
// server. When the results payload changes on disk, connected browsers get a
// reload event.
package export

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/debug"
)

// EventsPath is the SSE endpoint served by the preview server.
const EventsPath = "/__preview__/events"

// LiveReloadHub manages SSE connections and watches the payload for changes.
type LiveReloadHub struct {
	payloadPath string
	watcher     *fsnotify.Watcher

	mu      sync.RWMutex
	clients map[chan struct{}]struct{}

	ctx    context.Context
	cancel context.CancelFunc

	lastEvent time.Time
	debounce  time.Duration

	// OnChange runs before clients are notified. The preview server uses it
	// to reload the payload.
	OnChange func()
}

// NewLiveReloadHub creates a hub for the given payload file. An empty path
// creates a hub that only reacts to Notify.
func NewLiveReloadHub(payloadPath string) (*LiveReloadHub, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &LiveReloadHub{
		payloadPath: payloadPath,
		watcher:     watcher,
		clients:     make(map[chan struct{}]struct{}),
		ctx:         ctx,
		cancel:      cancel,
		debounce:    200 * time.Millisecond,
	}, nil
}

// Start begins watching. The payload's directory is watched rather than the
// file itself so editors that save by rename are still seen.
func (h *LiveReloadHub) Start() error {
	if h.payloadPath != "" {
		if err := h.watcher.Add(filepath.Dir(h.payloadPath)); err != nil {
			return fmt.Errorf("watch payload directory: %w", err)
		}
	}
	go h.watchLoop()
	return nil
}

// Stop shuts down the hub and disconnects all clients.
func (h *LiveReloadHub) Stop() {
	h.cancel()
	h.watcher.Close()

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		close(ch)
	}
	h.clients = make(map[chan struct{}]struct{})
}

// ClientCount returns the number of connected clients.
func (h *LiveReloadHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notify sends a reload event to every connected client.
func (h *LiveReloadHub) Notify() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- struct{}{}:
		default:
			// Client already has a pending reload
		}
	}
}

func (h *LiveReloadHub) watchLoop() {
	log := debug.Component("livereload")
	target := filepath.Clean(h.payloadPath)
	for {
		select {
		case <-h.ctx.Done():
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			now := time.Now()
			if now.Sub(h.lastEvent) < h.debounce {
				continue
			}
			h.lastEvent = now

			log.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("payload changed")
			if h.OnChange != nil {
				h.OnChange()
			}
			h.Notify()

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("watch error")
		}
	}
}

// SSEHandler returns an HTTP handler for the SSE endpoint.
func (h *LiveReloadHub) SSEHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "SSE not supported", http.StatusInternalServerError)
			return
		}

		clientCh := make(chan struct{}, 1)
		h.mu.Lock()
		h.clients[clientCh] = struct{}{}
		h.mu.Unlock()

		defer func() {
			h.mu.Lock()
			delete(h.clients, clientCh)
			h.mu.Unlock()
		}()

		fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-h.ctx.Done():
				return
			case _, ok := <-clientCh:
				if !ok {
					return
				}
				fmt.Fprintf(w, "event: reload\ndata: {\"action\":\"reload\"}\n\n")
				flusher.Flush()
			}
		}
	}
}

// LiveReloadScript connects to the SSE endpoint and reloads on events.
const LiveReloadScript = `<script>
(function() {
  if (typeof(EventSource) === 'undefined') return;
  var reconnectDelay = 1000;
  var maxReconnectDelay = 30000;

  function connect() {
    var es = new EventSource('` + EventsPath + `');

    es.addEventListener('connected', function() {
      reconnectDelay = 1000;
    });

    es.addEventListener('reload', function() {
      location.reload();
    });

    es.onerror = function() {
      es.close();
      setTimeout(connect, reconnectDelay);
      reconnectDelay = Math.min(reconnectDelay * 2, maxReconnectDelay);
    };
  }

  connect();
})();
</script>`

// liveReloadMiddleware injects the live-reload script into HTML pages.
// Images, JSON and the event stream pass through untouched.
func liveReloadMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == EventsPath || (r.URL.Path != "/" && filepath.Ext(r.URL.Path) != ".html") {
			next.ServeHTTP(w, r)
			return
		}

		irw := &injectingResponseWriter{
			ResponseWriter: w,
			inject:         []byte(LiveReloadScript),
		}
		next.ServeHTTP(irw, r)
		irw.finish()
	})
}

// injectingResponseWriter buffers an HTML body and inserts a script before
// </body>, or at the end when there is none.
type injectingResponseWriter struct {
	http.ResponseWriter
	inject []byte
	buf    bytes.Buffer
	status int
}

func (w *injectingResponseWriter) WriteHeader(status int) {
	w.status = status
}

func (w *injectingResponseWriter) Write(b []byte) (int, error) {
	return w.buf.Write(b)
}

func (w *injectingResponseWriter) finish() {
	body := w.buf.Bytes()
	ct := w.Header().Get("Content-Type")
	if ct == "" || strings.HasPrefix(ct, "text/html") {
		if idx := bytes.LastIndex(body, []byte("</body>")); idx >= 0 {
			out := make([]byte, 0, len(body)+len(w.inject))
			out = append(out, body[:idx]...)
			out = append(out, w.inject...)
			out = append(out, body[idx:]...)
			body = out
		} else if len(body) > 0 {
			body = append(body, w.inject...)
		}
	}
	w.Header().Del("Content-Length")
	if w.status != 0 {
		w.ResponseWriter.WriteHeader(w.status)
	}
	_, _ = w.ResponseWriter.Write(body)
}
