// Package httpapi implements C8, the thin HTTP/SSE control surface: recorder
// command routes dispatched through the C7 command bus, asset and subtitle
// routes that call the asset repository directly, plus Server-Sent
// Events for progress/domain-events/recorder-state/metadata/assets and an
// MJPEG preview feed adapted from the teacher's own /mjpeg endpoint.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/nasubidev/splatrecorder/internal/assets"
	"github.com/nasubidev/splatrecorder/internal/bus"
	"github.com/nasubidev/splatrecorder/internal/model"
)

// Recorder is the subset of *recorder.Orchestrator the HTTP surface
// depends on: a read-only state query plus the five operator-driven
// control points, all of which the orchestrator already exposes without
// going through frame detection.
type Recorder interface {
	State() model.RecordState
	ManualStart(ctx context.Context)
	ManualPause()
	ManualResume()
	ManualStop(ctx context.Context)
	ManualCancel(ctx context.Context)
}

// Server is C8: one http.ServeMux wired to the command bus, the event bus,
// the asset repository, and the recorder's control surface.
type Server struct {
	mux *http.ServeMux

	Repo *assets.Repository
	Rec  Recorder
	EB   *bus.EventBus
	CB   *bus.CommandBus
	Hub  *FrameHub

	// SSEPollInterval is how often each SSE handler drains its
	// subscription. Defaults to 200ms if zero.
	SSEPollInterval time.Duration
}

// NewServer registers every command handler and route, grounded on the
// teacher's startServer: one http.ServeMux, GET/POST method-pattern routes,
// explicit Cache-Control headers on anything that must not be cached.
func NewServer(repo *assets.Repository, rec Recorder, eb *bus.EventBus, cb *bus.CommandBus, hub *FrameHub) *Server {
	s := &Server{mux: http.NewServeMux(), Repo: repo, Rec: rec, EB: eb, CB: cb, Hub: hub, SSEPollInterval: 200 * time.Millisecond}

	cb.Register("recorder.start", func(ctx context.Context, _ map[string]any) (any, error) {
		rec.ManualStart(ctx)
		return nil, nil
	})
	cb.Register("recorder.pause", func(ctx context.Context, _ map[string]any) (any, error) {
		rec.ManualPause()
		return nil, nil
	})
	cb.Register("recorder.resume", func(ctx context.Context, _ map[string]any) (any, error) {
		rec.ManualResume()
		return nil, nil
	})
	cb.Register("recorder.stop", func(ctx context.Context, _ map[string]any) (any, error) {
		rec.ManualStop(ctx)
		return nil, nil
	})
	cb.Register("recorder.cancel", func(ctx context.Context, _ map[string]any) (any, error) {
		rec.ManualCancel(ctx)
		return nil, nil
	})

	s.routes()
	return s
}

// Handler returns the root http.Handler for this surface.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() {
	s.mux.HandleFunc("GET /recorder/state", s.handleRecorderState)
	s.mux.HandleFunc("POST /recorder/start", s.handleCommand("recorder.start"))
	s.mux.HandleFunc("POST /recorder/pause", s.handleCommand("recorder.pause"))
	s.mux.HandleFunc("POST /recorder/resume", s.handleCommand("recorder.resume"))
	s.mux.HandleFunc("POST /recorder/stop", s.handleCommand("recorder.stop"))
	s.mux.HandleFunc("POST /recorder/cancel", s.handleCommand("recorder.cancel"))

	s.mux.HandleFunc("GET /assets/recorded", s.handleListRecorded)
	s.mux.HandleFunc("GET /assets/edited", s.handleListEdited)
	s.mux.HandleFunc("PATCH /assets/recorded/{id}/metadata", s.handleUpdateMetadata)
	s.mux.HandleFunc("DELETE /assets/recorded/{id}", s.handleDeleteRecorded)
	s.mux.HandleFunc("DELETE /assets/edited/{id}", s.handleDeleteEdited)

	s.mux.HandleFunc("GET /subtitles/recorded/{id}", s.handleReadSubtitle)
	s.mux.HandleFunc("PUT /subtitles/recorded/{id}", s.handleUpdateSubtitle)

	s.mux.HandleFunc("GET /events/progress", s.handleSSE(isProgressEvent))
	s.mux.HandleFunc("GET /events/domain-events", s.handleSSE(nil))
	s.mux.HandleFunc("GET /events/recorder-state", s.handleSSE(isType(model.EventRecorderState)))
	s.mux.HandleFunc("GET /events/metadata", s.handleSSE(isMetadataEvent))
	s.mux.HandleFunc("GET /events/assets", s.handleSSE(isAssetEvent))

	s.mux.HandleFunc("GET /preview/mjpeg", s.handlePreview)
}

func (s *Server) handleRecorderState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"state": s.Rec.State()})
}

// handleCommand submits name on the command bus and waits for its future,
// bounded by the request's own context.
func (s *Server) handleCommand(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fut := s.CB.Submit(r.Context(), model.Command{Name: name})
		res, err := fut.Wait(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusGatewayTimeout)
			return
		}
		if !res.OK() {
			http.Error(w, res.Err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func (s *Server) handleListRecorded(w http.ResponseWriter, r *http.Request) {
	got, err := s.Repo.ListRecordings()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, got)
}

func (s *Server) handleListEdited(w http.ResponseWriter, r *http.Request) {
	got, err := s.Repo.ListEdited()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, got)
}

func (s *Server) handleUpdateMetadata(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	body, err := readAll(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	meta, err := model.FromDict(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Repo.UpdateMetadata(id, meta); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteRecorded(w http.ResponseWriter, r *http.Request) {
	if err := s.Repo.DeleteRecording(r.PathValue("id")); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteEdited(w http.ResponseWriter, r *http.Request) {
	if err := s.Repo.DeleteEdited(r.PathValue("id")); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReadSubtitle(w http.ResponseWriter, r *http.Request) {
	srt, err := s.Repo.ReadSubtitle(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-subrip; charset=utf-8")
	_, _ = w.Write([]byte(srt))
}

func (s *Server) handleUpdateSubtitle(w http.ResponseWriter, r *http.Request) {
	body, err := readAll(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Repo.UpdateSubtitle(r.PathValue("id"), string(body)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePreview serves the MJPEG multipart stream, directly adapted from
// the teacher's GET /mjpeg handler in server.go.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.Hub == nil {
		http.Error(w, "preview not available", http.StatusServiceUnavailable)
		return
	}
	start := time.Now()
	slog.Info("http", "remote", r.RemoteAddr, "route", "preview")
	mw := multipart.NewWriter(w)
	defer mw.Close()
	h := w.Header()
	h.Set("Content-Type", "multipart/x-mixed-replace;boundary="+mw.Boundary())
	h.Set("Connection", "close")
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	i := 0
	for frame := range s.Hub.relay(r.Context()) {
		fw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":   []string{"image/jpeg"},
			"Content-Length": []string{strconv.Itoa(len(frame))},
		})
		if err != nil {
			break
		}
		if _, err := fw.Write(frame); err != nil {
			break
		}
		i++
	}
	slog.Info("http", "remote", r.RemoteAddr, "done", true, "frames", i, "d", time.Since(start).Round(100*time.Millisecond))
}

// Serve starts the HTTP server, returning once the listener is established;
// it shuts down when ctx is cancelled. Mirrors the teacher's startServer
// shape (BaseContext tying request contexts to the app's lifetime).
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Handler:      handler,
		BaseContext:  func(net.Listener) context.Context { return ctx },
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 366 * 24 * time.Hour, // SSE/MJPEG connections are long-lived
		IdleTimeout:  10 * time.Second,
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	slog.Info("http", "addr", l.Addr())
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	go func() {
		if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
			slog.Error("http", "err", err)
		}
	}()
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readAll(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}
