package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/debug"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/geomap"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/model"
)

// PreviewOptions configures a PreviewServer.
type PreviewOptions struct {
	Addr        string // Listen address, e.g. "127.0.0.1:8765"
	PayloadPath string // Watched for live reload; empty disables watching
	Load        func() (*model.Results, error)
	Atlas       *geomap.Atlas
	Title       string
	Tree        TreeOptions
}

// PreviewServer serves the tree and map of a results payload over HTTP and
// reloads connected browsers when the payload changes.
//
// Routes:
//
//	/                  HTML page with every tree and the map
//	/tree.svg?name=N   one tree (first tree when name is empty)
//	/map.svg           the map with the current selection
//	/regions           GET the selection as JSON; POST a list of codes to select
//	/report.md         markdown report
//	/__preview__/events  live reload stream
type PreviewServer struct {
	opts  PreviewOptions
	atlas *geomap.Atlas
	hub   *LiveReloadHub

	mu       sync.RWMutex
	results  *model.Results
	selected []model.Region
	chosen   bool // selection was set by a client
	loadErr  error
}

// NewPreviewServer loads the payload once and prepares the server.
func NewPreviewServer(opts PreviewOptions) (*PreviewServer, error) {
	if opts.Load == nil {
		return nil, fmt.Errorf("preview: no payload loader")
	}
	atlas := opts.Atlas
	if atlas == nil {
		var err error
		if atlas, err = geomap.DefaultAtlas(); err != nil {
			return nil, err
		}
	}
	hub, err := NewLiveReloadHub(opts.PayloadPath)
	if err != nil {
		return nil, err
	}
	s := &PreviewServer{opts: opts, atlas: atlas, hub: hub}
	hub.OnChange = func() { _ = s.Reload() }
	if err := s.Reload(); err != nil {
		hub.Stop()
		return nil, err
	}
	return s, nil
}

// Reload re-reads the payload. On failure the previous results stay in place
// and the error is reported on the page.
func (s *PreviewServer) Reload() error {
	results, err := s.opts.Load()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
	if err != nil {
		lg := debug.Component("preview")
		lg.Warn().Err(err).Msg("reload failed")
		return fmt.Errorf("load payload: %w", err)
	}
	s.results = results
	if !s.chosen {
		s.selected = results.Regions
	}
	return nil
}

// Selected returns the current region selection.
func (s *PreviewServer) Selected() []model.Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Region(nil), s.selected...)
}

// Hub exposes the live-reload hub.
func (s *PreviewServer) Hub() *LiveReloadHub { return s.hub }

func (s *PreviewServer) snapshot() (*model.Results, []model.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.results, append([]model.Region(nil), s.selected...), s.loadErr
}

// Handler returns the routes with live-reload injection applied.
func (s *PreviewServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handlePage)
	mux.HandleFunc("/tree.svg", s.handleTree)
	mux.HandleFunc("/map.svg", s.handleMap)
	mux.HandleFunc("/regions", s.handleRegions)
	mux.HandleFunc("/report.md", s.handleReport)
	mux.Handle(EventsPath, s.hub.SSEHandler())
	return liveReloadMiddleware(mux)
}

// ListenAndServe serves until ctx is cancelled.
func (s *PreviewServer) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *PreviewServer) Serve(ctx context.Context, ln net.Listener) error {
	if err := s.hub.Start(); err != nil {
		return err
	}
	defer s.hub.Stop()

	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	lg := debug.Component("preview")
	lg.Info().Str("addr", ln.Addr().String()).Msg("serving")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Stop the hub first so open event streams return.
		s.hub.Stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *PreviewServer) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	results, selected, loadErr := s.snapshot()
	if results == nil {
		http.Error(w, fmt.Sprintf("payload unavailable: %v", loadErr), http.StatusServiceUnavailable)
		return
	}
	page, err := GeneratePageHTML(PageOptions{
		Results:  results,
		Selected: selected,
		Atlas:    s.atlas,
		Title:    s.opts.Title,
		Tree:     s.opts.Tree,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if loadErr != nil {
		w.Header().Set("X-Reload-Error", loadErr.Error())
	}
	io.WriteString(w, page)
}

func (s *PreviewServer) handleTree(w http.ResponseWriter, r *http.Request) {
	results, _, _ := s.snapshot()
	if results == nil || len(results.Trees) == 0 {
		http.Error(w, "no trees in payload", http.StatusNotFound)
		return
	}
	tree := results.Trees[0]
	if name := r.URL.Query().Get("name"); name != "" {
		var ok bool
		if tree, ok = results.FindTree(name); !ok {
			http.Error(w, fmt.Sprintf("unknown tree %q", name), http.StatusNotFound)
			return
		}
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	if err := RenderTree(w, tree, results, s.opts.Tree); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	}
}

func (s *PreviewServer) handleMap(w http.ResponseWriter, r *http.Request) {
	results, selected, _ := s.snapshot()
	view, err := NewMapView(results, selected, s.atlas, 0, 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer view.Close()
	w.Header().Set("Content-Type", "image/svg+xml")
	if err := RenderMap(w, view.Surface(), MapOptions{Title: s.opts.Title}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleRegions applies a posted selection through a mounted map widget, so
// the stored selection is exactly what the widget publishes.
func (s *PreviewServer) handleRegions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var codes []string
		if err := json.NewDecoder(r.Body).Decode(&codes); err != nil {
			http.Error(w, "expected a JSON list of region codes", http.StatusBadRequest)
			return
		}
		results, _, _ := s.snapshot()
		view, err := NewMapView(results, nil, s.atlas, 0, 0)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		err = view.Surface().SelectRegions(codes...)
		selected := view.Selected.Get()
		view.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.selected = selected
		s.chosen = true
		s.mu.Unlock()
		lg := debug.Component("preview")
		lg.Debug().Strs("codes", model.RegionCodes(selected)).Msg("selection changed")
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	selected := s.Selected()
	if selected == nil {
		selected = []model.Region{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(selected)
}

func (s *PreviewServer) handleReport(w http.ResponseWriter, r *http.Request) {
	results, selected, _ := s.snapshot()
	report, err := GenerateReport(results, ReportOptions{Title: s.opts.Title, Selected: selected})
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	io.WriteString(w, report)
}
