// =============================================================================
// COVID Scenes - HTTP Server
// =============================================================================
//
// This module exposes one shared scene session over HTTP. Every scene
// transition is pushed to websocket clients, so several browsers can follow
// the same presentation.
//
// ROUTES (all under /api):
//   GET  /scene                  current View
//   GET  /scene.svg              current scene drawn by the chart writer
//   POST /scene/next, /scene/prev
//   PUT  /scene/state            {"state":"NY"}; "" clears the filter
//   GET  /states                 ranked per-state totals
//   GET  /dates                  daily totals
//   GET  /states/{state}/records records of one state
//   POST /dataset/reload         re-fetch the source
//   GET  /ws                     scene events
//   GET  /metrics                prometheus
//
// The Selector is not safe for concurrent use; every handler that touches
// it holds Server.mu.
//
// =============================================================================

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ginjaninja78/covid-scenes/internal/aggregate"
	"github.com/ginjaninja78/covid-scenes/internal/chartwriter"
	"github.com/ginjaninja78/covid-scenes/internal/config"
	"github.com/ginjaninja78/covid-scenes/internal/loader"
	"github.com/ginjaninja78/covid-scenes/internal/records"
	"github.com/ginjaninja78/covid-scenes/internal/scene"
	"github.com/ginjaninja78/covid-scenes/internal/types"
)

// DatasetLoader loads a dataset from a source.
type DatasetLoader interface {
	Load(ctx context.Context, source string) (*loader.Dataset, error)
}

// Event is pushed to websocket clients after every transition.
type Event struct {
	Type  string      `json:"type"`
	State scene.State `json:"state"`
	View  types.View  `json:"view"`
}

// SceneResponse is the body of the scene endpoints.
type SceneResponse struct {
	State scene.State `json:"state"`
	View  types.View  `json:"view"`

	// RenderError is set when the transition happened but its scene could
	// not be published.
	RenderError string `json:"renderError,omitempty"`
}

// DatasetInfo describes the active dataset.
type DatasetInfo struct {
	Source     string    `json:"source"`
	Records    int       `json:"records"`
	Rows       int       `json:"rows"`
	Skipped    int       `json:"skipped"`
	ZeroFilled int       `json:"zeroFilled"`
	States     int       `json:"states"`
	LoadedAt   time.Time `json:"loadedAt"`
	Stale      bool      `json:"stale,omitempty"`
}

// StateRequest is the body of PUT /scene/state.
type StateRequest struct {
	State *string `json:"state"`
}

// Bind implements render.Binder.
func (req *StateRequest) Bind(r *http.Request) error {
	if req.State == nil {
		return errors.New("missing field \"state\"")
	}
	return nil
}

// Server serves a scene session.
type Server struct {
	mu       sync.Mutex
	selector *scene.Selector
	dataset  *loader.Dataset

	cfg     *config.MainConfig
	loader  DatasetLoader
	writer  *chartwriter.Writer
	hub     *Hub
	metrics *Metrics
	limiter *rate.Limiter
	logger  *zap.Logger

	upgrader websocket.Upgrader
}

// New creates a Server over ds. ds may be nil, which starts an empty session.
func New(cfg *config.MainConfig, ds *loader.Dataset, l DatasetLoader, writer *chartwriter.Writer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ds == nil {
		ds = &loader.Dataset{Source: cfg.Source}
	}

	s := &Server{
		dataset: ds,
		cfg:     cfg,
		loader:  l,
		writer:  writer,
		metrics: NewMetrics(),
		logger:  logger.With(zap.String("component", "server")),
	}
	s.hub = NewHub(logger)
	if cfg.Server.RateLimitRPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Server.RateLimitRPS), cfg.Server.RateLimitBurst)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	s.selector = scene.New(ds.Records,
		scene.WithNavigation(cfg.NavigationPolicy()),
		scene.WithRenderer(scene.RendererFunc(s.publish)),
		scene.WithLogger(logger),
	)
	s.metrics.RecordsLoaded.Set(float64(len(ds.Records)))

	return s
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		// Websocket and metrics stay outside the JSON content type.
		r.Get("/ws", s.handleWebSocket)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
		r.Get("/scene.svg", s.handleSceneImage)

		r.Group(func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))

			r.Get("/scene", s.handleScene)
			r.Get("/states", s.handleStates)
			r.Get("/dates", s.handleDates)
			r.Get("/states/{state}/records", s.handleStateRecords)
			r.Get("/dataset", s.handleDataset)
			r.Post("/dataset/reload", s.handleReload)

			r.Group(func(r chi.Router) {
				r.Use(s.rateLimit)
				r.Post("/scene/next", s.handleNext)
				r.Post("/scene/prev", s.handlePrev)
				r.Put("/scene/state", s.handleSelectState)
			})
		})
	})

	return r
}

// Run serves HTTP on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.hub.Run(gctx)
	})

	g.Go(func() error {
		s.logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()

		s.logger.Info("shutting down server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// =============================================================================
// SCENE HANDLERS
// =============================================================================

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := SceneResponse{State: s.selector.State(), View: s.selector.Current()}
	s.mu.Unlock()

	render.JSON(w, r, resp)
}

func (s *Server) handleSceneImage(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	view := s.selector.Current()
	s.mu.Unlock()

	var buf bytes.Buffer
	if err := s.writer.Write(&buf, view); err != nil {
		s.metrics.RenderFailures.Inc()
		s.logger.Warn("scene image failed", zap.Int("scene", view.Index), zap.Error(err))
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", s.writer.ContentType())
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.navigate(w, r, (*scene.Selector).Next)
}

func (s *Server) handlePrev(w http.ResponseWriter, r *http.Request) {
	s.navigate(w, r, (*scene.Selector).Prev)
}

func (s *Server) handleSelectState(w http.ResponseWriter, r *http.Request) {
	var req StateRequest
	if err := render.Bind(r, &req); err != nil {
		_ = render.Render(w, r, newAPIError(http.StatusBadRequest, "INVALID_REQUEST", err))
		return
	}

	s.navigate(w, r, func(sel *scene.Selector) error {
		return sel.SelectState(*req.State)
	})
}

// navigate applies op under the lock. A *scene.RenderError still reports
// the new state; any other error leaves the state unchanged.
func (s *Server) navigate(w http.ResponseWriter, r *http.Request, op func(*scene.Selector) error) {
	s.mu.Lock()
	before := s.selector.State()
	err := op(s.selector)
	resp := SceneResponse{State: s.selector.State(), View: s.selector.Current()}
	s.mu.Unlock()

	var renderErr *scene.RenderError
	switch {
	case errors.As(err, &renderErr):
		s.metrics.RenderFailures.Inc()
		resp.RenderError = renderErr.Error()
	case err != nil:
		writeError(w, r, err)
		return
	}

	if resp.State != before {
		s.metrics.Transitions.WithLabelValues(string(resp.View.Kind)).Inc()
	}
	render.JSON(w, r, resp)
}

// publish is the Selector's renderer: it pushes the scene to websocket
// clients.
func (s *Server) publish(view types.View) error {
	msg, err := sceneEvent(view)
	if err != nil {
		return err
	}
	s.hub.Broadcast(msg)
	return nil
}

func sceneEvent(view types.View) ([]byte, error) {
	msg, err := json.Marshal(Event{
		Type:  "scene",
		State: scene.State{Index: view.Index, SelectedState: view.SelectedState},
		View:  view,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode scene event: %w", err)
	}
	return msg, nil
}

// =============================================================================
// DATA HANDLERS
// =============================================================================

func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ranked := aggregate.Ranked(s.selector.ByState())
	s.mu.Unlock()

	render.JSON(w, r, ranked)
}

func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	byDate := s.selector.ByDate()
	s.mu.Unlock()

	render.JSON(w, r, byDate)
}

func (s *Server) handleStateRecords(w http.ResponseWriter, r *http.Request) {
	state := chi.URLParam(r, "state")

	s.mu.Lock()
	_, ok := s.selector.ByState()[state]
	var recs []types.Record
	if ok {
		recs = aggregate.FilterByState(s.selector.Records(), state)
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, r, fmt.Errorf("%w: %q", scene.ErrUnknownState, state))
		return
	}
	render.JSON(w, r, recs)
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	info := s.datasetInfo()
	s.mu.Unlock()

	render.JSON(w, r, info)
}

// handleReload re-fetches the source. The previous dataset stays active
// when the fetch or parse fails.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	ds, err := s.loader.Load(r.Context(), s.cfg.Source)
	if err != nil && !errors.Is(err, records.ErrEmptyDataset) {
		s.metrics.Reloads.WithLabelValues("failed").Inc()
		s.logger.Warn("reload failed, keeping previous dataset", zap.Error(err))
		writeError(w, r, err)
		return
	}

	s.mu.Lock()
	s.dataset = ds
	reloadErr := s.selector.Reload(ds.Records)
	info := s.datasetInfo()
	s.mu.Unlock()

	if reloadErr != nil {
		s.metrics.RenderFailures.Inc()
	}
	s.metrics.Reloads.WithLabelValues("ok").Inc()
	s.metrics.RecordsLoaded.Set(float64(info.Records))

	s.logger.Info("dataset reloaded",
		zap.String("source", info.Source),
		zap.Int("records", info.Records),
		zap.Bool("stale", info.Stale))
	render.JSON(w, r, info)
}

// datasetInfo must be called with s.mu held.
func (s *Server) datasetInfo() DatasetInfo {
	ds := s.dataset
	return DatasetInfo{
		Source:     ds.Source,
		Records:    len(ds.Records),
		Rows:       ds.Report.Rows,
		Skipped:    ds.Report.Skipped(),
		ZeroFilled: ds.Report.ZeroFilled(),
		States:     len(s.selector.States()),
		LoadedAt:   ds.LoadedAt,
		Stale:      ds.Stale,
	}
}

// =============================================================================
// MIDDLEWARE AND WEBSOCKET
// =============================================================================

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.logger.Warn("rate limit exceeded",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr))
			w.Header().Set("Retry-After", "1")
			_ = render.Render(w, r, newAPIError(http.StatusTooManyRequests, "RATE_LIMITED", errors.New("too many requests")))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	// Only the new client is greeted. mu is held until it is registered so
	// no transition falls between the greeting and the next broadcast.
	s.mu.Lock()
	defer s.mu.Unlock()

	greeting, err := sceneEvent(s.selector.Current())
	if err != nil {
		s.logger.Warn("failed to greet client", zap.Error(err))
	}
	if !s.hub.attach(conn, greeting) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
	}
}
