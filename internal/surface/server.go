// Package surface exposes an Instance over HTTP: REST endpoints to run
// actions and presets, and a websocket that pushes status and variable
// changes.
package surface

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/showcontroller/obsbot-osc/internal/pubsub"
	"github.com/showcontroller/obsbot-osc/obsbot"
	"github.com/showcontroller/obsbot-osc/obsbot/catalog"
)

// Controller is the part of obsbot.Instance the surface drives.
type Controller interface {
	Open(cfg obsbot.Config)
	Send(address string, args []interface{}, host ...string)
	Status() (obsbot.Status, string)
	State() *obsbot.State
}

// Options configures New.
type Options struct {
	Catalog     *catalog.Catalog
	PubSub      *pubsub.PubSub
	Logger      *slog.Logger
	CORSOrigins []string
	Debug       bool
}

// Server is the control surface of one instance.
type Server struct {
	ctrl    Controller
	catalog *catalog.Catalog
	ps      *pubsub.PubSub
	logger  *slog.Logger
	origins []string
	debug   bool

	mu  sync.RWMutex
	cfg obsbot.Config
}

// New returns a Server for ctrl, which was opened with cfg.
func New(ctrl Controller, cfg obsbot.Config, opts Options) *Server {
	s := &Server{
		ctrl:    ctrl,
		catalog: opts.Catalog,
		ps:      opts.PubSub,
		logger:  opts.Logger,
		origins: opts.CORSOrigins,
		debug:   opts.Debug,
		cfg:     cfg,
	}
	if s.catalog == nil {
		s.catalog = catalog.Default()
	}
	if s.ps == nil {
		s.ps = pubsub.New()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "surface")
	return s
}

// Config returns the configuration the instance was last opened with.
func (s *Server) Config() obsbot.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Reconfigure validates cfg and reopens the instance with it.
func (s *Server) Reconfigure(cfg obsbot.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, ok := s.catalog.Model(cfg.Model); !ok {
		return fmt.Errorf("%w: %s", catalog.ErrUnknownModel, cfg.Model)
	}

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()

	s.logger.Info("reconfiguring", "transport", cfg.Transport, "addr", cfg.Addr(), "model", cfg.Model)
	s.ctrl.Open(cfg)
	return nil
}

// RunAction builds an action for the configured model and sends its
// commands.
func (s *Server) RunAction(id string, options map[string]interface{}) error {
	cmds, err := s.catalog.Build(s.Config().Model, id, options)
	if err != nil {
		return err
	}
	s.sendAll(cmds)
	return nil
}

// RunPreset sends the press (down) or release commands of a preset.
func (s *Server) RunPreset(id string, down bool) error {
	cmds, err := s.catalog.BuildPreset(s.Config().Model, id, down)
	if err != nil {
		return err
	}
	s.sendAll(cmds)
	return nil
}

func (s *Server) sendAll(cmds []catalog.Command) {
	for _, c := range cmds {
		s.ctrl.Send(c.Address, c.Args)
	}
}

// Handler returns the HTTP handler of the surface.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		Debug:            s.debug,
	})
	router.Use(corsMiddleware.Handler)

	// websocket connections outlive the request timeout
	router.Get("/ws", s.handleWebsocket)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))

		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/variables", s.handleVariables)
		r.Get("/config", s.handleGetConfig)
		r.Put("/config", s.handlePutConfig)
		r.Get("/actions", s.handleListActions)
		r.Post("/actions/{id}", s.handleRunAction)
		r.Get("/presets", s.handleListPresets)
		r.Post("/presets/{id}/{edge}", s.handleRunPreset)
	})

	return router
}

type statusResponse struct {
	Status  obsbot.Status `json:"status"`
	Message string        `json:"message,omitempty"`
}

type variablesResponse struct {
	Definitions []obsbot.VariableDefinition `json:"definitions"`
	Values      map[string]interface{}      `json:"values"`
}

type actionRequest struct {
	Options map[string]interface{} `json:"options"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, msg := s.ctrl.Status()
	writeJSON(w, http.StatusOK, statusResponse{Status: status, Message: msg})
}

func (s *Server) handleVariables(w http.ResponseWriter, r *http.Request) {
	state := s.ctrl.State()
	writeJSON(w, http.StatusOK, variablesResponse{
		Definitions: state.Definitions(),
		Values:      state.Values(),
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Config())
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	// fields missing from the body keep their current value
	cfg := s.Config()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("failed to decode config: %w", err))
		return
	}
	if err := s.Reconfigure(cfg); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, cfg)
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	actions, err := s.catalog.ActionsFor(s.Config().Model)
	if err != nil {
		s.writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, actions)
}

func (s *Server) handleRunAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("failed to decode request: %w", err))
			return
		}
	}

	if err := s.RunAction(chi.URLParam(r, "id"), req.Options); err != nil {
		s.writeError(w, errorStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.catalog.PresetsFor(s.Config().Model)
	if err != nil {
		s.writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, presets)
}

func (s *Server) handleRunPreset(w http.ResponseWriter, r *http.Request) {
	var down bool
	switch edge := chi.URLParam(r, "edge"); edge {
	case "down":
		down = true
	case "up":
	default:
		s.writeError(w, http.StatusNotFound, fmt.Errorf("unknown preset edge %q", edge))
		return
	}

	if err := s.RunPreset(chi.URLParam(r, "id"), down); err != nil {
		s.writeError(w, errorStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, catalog.ErrUnknownAction), errors.Is(err, catalog.ErrUnknownPreset):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrInvalidOption):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrUnknownModel):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
