package api

import (
	"Go2DAQSpectra/internal/display"
	"Go2DAQSpectra/internal/metrics"
	"Go2DAQSpectra/internal/model"
	"Go2DAQSpectra/internal/session"
	"Go2DAQSpectra/internal/state"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Controller is the part of the session controller the API drives.
type Controller interface {
	Start(ctx context.Context, cfg model.SessionConfig) (string, error)
	Stop(ctx context.Context) error
	Status() session.Status
}

// Handler holds the dependencies for API handlers.
type Handler struct {
	ctrl     Controller
	settings *state.Store
	window   *display.Window
	logs     *display.LogRing
	logger   *zap.Logger
}

// NewHandler creates the API handler.
func NewHandler(ctrl Controller, settings *state.Store, window *display.Window, logs *display.LogRing, logger *zap.Logger) *Handler {
	return &Handler{
		ctrl:     ctrl,
		settings: settings,
		window:   window,
		logs:     logs,
		logger:   logger.With(zap.String("component", "api")),
	}
}

// Router returns the routes of the control API plus /metrics.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/session", h.statusHandler).Methods(http.MethodGet)
	api.HandleFunc("/session/start", h.startHandler).Methods(http.MethodPost)
	api.HandleFunc("/session/stop", h.stopHandler).Methods(http.MethodPost)
	api.HandleFunc("/settings", h.getSettingsHandler).Methods(http.MethodGet)
	api.HandleFunc("/settings", h.putSettingsHandler).Methods(http.MethodPut)
	api.HandleFunc("/points", h.pointsHandler).Methods(http.MethodGet)
	api.HandleFunc("/logs", h.logsHandler).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return r
}

// configView is the wire form of a session configuration.
type configView struct {
	DurationSeconds    int    `json:"duration_seconds"`
	SampleRate         int    `json:"sample_rate"`
	Voltage            string `json:"voltage"`
	ElementsPerRequest int    `json:"elements_per_request"`
	Channels           []int  `json:"channels"`
	Averaging          bool   `json:"averaging"`
	PlotWindow         int    `json:"plot_window"`
}

func newConfigView(cfg model.SessionConfig) configView {
	channels := cfg.Channels
	if channels == nil {
		channels = []int{}
	}
	return configView{
		DurationSeconds:    int(cfg.Duration / time.Second),
		SampleRate:         int(cfg.SampleRate),
		Voltage:            string(cfg.Voltage),
		ElementsPerRequest: cfg.ElementsPerRequest,
		Channels:           channels,
		Averaging:          cfg.Averaging,
		PlotWindow:         cfg.PlotWindow,
	}
}

// settingsView is the wire form of the measurement settings.
type settingsView struct {
	configView
	Measuring   bool     `json:"measuring"`
	SampleRates []int    `json:"available_sample_rates,omitempty"`
	Voltages    []string `json:"available_voltages,omitempty"`
}

// statusView is the wire form of the controller status.
type statusView struct {
	State      string      `json:"state"`
	RecordID   string      `json:"record_id,omitempty"`
	Config     *configView `json:"config,omitempty"`
	Points     map[int]int `json:"points,omitempty"`
	Total      int         `json:"total"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Aborted    bool        `json:"aborted"`
}

func newStatusView(st session.Status) statusView {
	v := statusView{
		State:    st.State.String(),
		RecordID: st.RecordID,
		Points:   st.Points,
		Total:    st.Total,
		Aborted:  st.Aborted,
	}
	if st.Config != nil {
		cv := newConfigView(*st.Config)
		v.Config = &cv
	}
	if !st.StartedAt.IsZero() {
		t := st.StartedAt
		v.StartedAt = &t
	}
	if !st.FinishedAt.IsZero() {
		t := st.FinishedAt
		v.FinishedAt = &t
	}
	return v
}

// settingsPatch holds the fields of a PUT /settings request; absent fields are kept.
type settingsPatch struct {
	DurationSeconds    *int    `json:"duration_seconds"`
	SampleRate         *int    `json:"sample_rate"`
	Voltage            *string `json:"voltage"`
	ElementsPerRequest *int    `json:"elements_per_request"`
	Channels           *[]int  `json:"channels"`
	Averaging          *bool   `json:"averaging"`
	PlotWindow         *int    `json:"plot_window"`
}

func (p settingsPatch) apply(c *model.SessionConfig) {
	if p.DurationSeconds != nil {
		c.Duration = time.Duration(*p.DurationSeconds) * time.Second
	}
	if p.SampleRate != nil {
		c.SampleRate = model.SampleRate(*p.SampleRate)
	}
	if p.Voltage != nil {
		c.Voltage = model.Voltage(*p.Voltage)
	}
	if p.ElementsPerRequest != nil {
		c.ElementsPerRequest = *p.ElementsPerRequest
	}
	if p.Channels != nil {
		c.Channels = append([]int(nil), (*p.Channels)...)
	}
	if p.Averaging != nil {
		c.Averaging = *p.Averaging
	}
	if p.PlotWindow != nil {
		c.PlotWindow = *p.PlotWindow
	}
}

func (h *Handler) settingsView(cfg model.SessionConfig) settingsView {
	rates := make([]int, len(model.SampleRates))
	for i, r := range model.SampleRates {
		rates[i] = int(r)
	}
	return settingsView{
		configView:  newConfigView(cfg),
		Measuring:   h.settings.IsMeasuring(),
		SampleRates: rates,
		Voltages:    []string{string(model.Voltage5V), string(model.Voltage10V)},
	}
}

func (h *Handler) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStatusView(h.ctrl.Status()))
}

func (h *Handler) startHandler(w http.ResponseWriter, r *http.Request) {
	id, err := h.ctrl.Start(r.Context(), h.settings.Snapshot())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"record_id": id})
}

func (h *Handler) stopHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Stop(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newStatusView(h.ctrl.Status()))
}

func (h *Handler) getSettingsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settingsView(h.settings.Snapshot()))
}

func (h *Handler) putSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var patch settingsPatch
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		http.Error(w, fmt.Sprintf("failed to decode request: %v", err), http.StatusBadRequest)
		return
	}
	cfg, err := h.settings.Update(patch.apply)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.settingsView(cfg))
}

// pointView is the wire form of a plotted point.
type pointView struct {
	Elapsed float64   `json:"elapsed"`
	Value   *float64  `json:"value,omitempty"`
	Values  []float64 `json:"values,omitempty"`
}

func (h *Handler) pointsHandler(w http.ResponseWriter, r *http.Request) {
	out := make(map[string][]pointView)
	for _, ch := range h.window.Channels() {
		points := h.window.Points(ch)
		views := make([]pointView, len(points))
		for i, p := range points {
			views[i] = pointView{Elapsed: p.Elapsed.Seconds()}
			switch p.Value.Kind {
			case model.KindScalar:
				v := p.Value.Scalar
				views[i].Value = &v
			case model.KindSequence:
				views[i].Values = p.Value.Sequence
			}
		}
		out[strconv.Itoa(ch)] = views
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"window":   h.window.Capacity(),
		"channels": out,
	})
}

func (h *Handler) logsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"lines": h.logs.Lines()})
}

// writeError maps domain errors to HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNoChannels), errors.Is(err, model.ErrInvalidConfig):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrSessionActive), errors.Is(err, session.ErrNotRunning):
		status = http.StatusConflict
	default:
		h.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
