package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/catdetector/companion/internal/cache"
	"github.com/catdetector/companion/internal/codec"
	"github.com/catdetector/companion/internal/controller"
	"github.com/catdetector/companion/internal/editor"
	"github.com/catdetector/companion/internal/geo"
	"github.com/catdetector/companion/internal/session"
	"github.com/catdetector/companion/pkg/core"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxImportSize = 1 << 20

// Controller is the part of the controller service the API uses.
type Controller interface {
	Snapshot() controller.Snapshot
	LatestImage() (cache.Entry, bool)
	Overlay() ([]geo.Shape, error)
	ImportZones(data []byte) (core.ZoneConfig, error)
	Servo(cmd core.ServoCommand) error
}

type App struct {
	Controller Controller
	Logger     *slog.Logger
}

type importResponse struct {
	Zones int    `json:"zones"`
	Error string `json:"error,omitempty"`
}

type statusResponse struct {
	Status          string            `json:"status"`
	Reason          string            `json:"reason"`
	ClientID        string            `json:"clientId,omitempty"`
	Broker          core.BrokerConfig `json:"broker"`
	DetectionStatus string            `json:"detectionStatus"`
	HasImage        bool              `json:"hasImage"`
	ImageWidth      int               `json:"imageWidth"`
	ImageHeight     int               `json:"imageHeight"`
	Frames          uint64            `json:"frames"`
	Zones           int               `json:"zones"`
	Editing         bool              `json:"editing"`
	Script          core.ScriptConfig `json:"script"`
	Notice          *noticeResponse   `json:"notice,omitempty"`
}

type noticeResponse struct {
	Level string    `json:"level"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

type shapeResponse struct {
	Kind   string       `json:"kind"`
	Closed bool         `json:"closed"`
	Points [][2]float64 `json:"points"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func (app *App) StatusHandler(w http.ResponseWriter, r *http.Request) {
	snap := app.Controller.Snapshot()
	resp := statusResponse{
		Status:          snap.Status.String(),
		Reason:          snap.Reason,
		ClientID:        snap.ClientID,
		Broker:          snap.Broker,
		DetectionStatus: snap.DetectionStatus,
		HasImage:        snap.HasImage,
		ImageWidth:      int(snap.ImageSize.Width),
		ImageHeight:     int(snap.ImageSize.Height),
		Frames:          snap.Frames,
		Zones:           len(snap.Zones.ActivationAreas),
		Editing:         snap.Editor.State == editor.Editing,
		Script:          snap.Script,
	}
	if snap.Notice.Text != "" {
		resp.Notice = &noticeResponse{Level: snap.Notice.Level.String(), Text: snap.Notice.Text, At: snap.Notice.At}
	}
	app.writeJSON(w, http.StatusOK, resp)
}

func (app *App) LatestImageHandler(w http.ResponseWriter, r *http.Request) {
	entry, ok := app.Controller.LatestImage()
	if !ok {
		app.writeJSON(w, http.StatusNotFound, errorResponse{Error: "no image received yet"})
		return
	}
	raw, err := base64.StdEncoding.DecodeString(entry.Payload)
	if err != nil {
		app.writeJSON(w, http.StatusBadGateway, errorResponse{Error: "latest frame is not valid base64"})
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Last-Modified", entry.Received.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

func (app *App) OverlayHandler(w http.ResponseWriter, r *http.Request) {
	shapes, err := app.Controller.Overlay()
	if err != nil {
		app.writeError(w, err)
		return
	}
	resp := make([]shapeResponse, 0, len(shapes))
	for _, s := range shapes {
		pts := make([][2]float64, len(s.Points))
		for i, p := range s.Points {
			pts[i] = [2]float64{p.X, p.Y}
		}
		resp = append(resp, shapeResponse{Kind: s.Kind.String(), Closed: s.Closed, Points: pts})
	}
	app.writeJSON(w, http.StatusOK, resp)
}

// ExportZonesHandler returns the zones in the same document format the import accepts.
func (app *App) ExportZonesHandler(w http.ResponseWriter, r *http.Request) {
	data, err := codec.EncodeZoneConfig(app.Controller.Snapshot().Zones)
	if err != nil {
		app.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="zones.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (app *App) ImportZonesHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		app.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "document too large"})
		return
	}
	cfg, err := app.Controller.ImportZones(data)
	switch {
	case err == nil:
		app.writeJSON(w, http.StatusOK, importResponse{Zones: len(cfg.ActivationAreas)})
	case errors.Is(err, session.ErrNotConnected) && !errors.Is(err, controller.ErrNotPersisted):
		// stored and applied, sent with the next save once connected
		app.writeJSON(w, http.StatusAccepted, importResponse{Zones: len(cfg.ActivationAreas), Error: err.Error()})
	case errors.Is(err, controller.ErrNotPersisted):
		app.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	default:
		app.writeError(w, err)
	}
}

func (app *App) ServoHandler(w http.ResponseWriter, r *http.Request) {
	cmd, err := core.ParseServoCommand(chi.URLParam(r, "command"))
	if err != nil {
		app.writeError(w, err)
		return
	}
	if err := app.Controller.Servo(cmd); err != nil {
		app.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *App) writeError(w http.ResponseWriter, err error) {
	var (
		verr *core.ValidationError
		ferr *codec.FormatError
	)
	switch {
	case errors.As(err, &verr):
		app.writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Reason, Field: verr.Field})
	case errors.As(err, &ferr):
		app.writeJSON(w, http.StatusBadRequest, errorResponse{Error: ferr.Reason, Field: ferr.Field})
	case errors.Is(err, session.ErrNotConnected):
		app.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	case errors.Is(err, geo.ErrImageSizeUnknown), errors.Is(err, geo.ErrDisplaySizeUnknown):
		app.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		app.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func (app *App) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.logger().Error("writing response", "error", err)
	}
}

func (app *App) logger() *slog.Logger {
	if app.Logger == nil {
		return slog.Default()
	}
	return app.Logger
}

func (app *App) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		app.logger().Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"requestId", middleware.GetReqID(r.Context()),
		)
	})
}
