package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/openscribe/scribed/internal/config"
	"github.com/openscribe/scribed/internal/outcome"
	"github.com/openscribe/scribed/internal/session"
)

// Server exposes the session over HTTP. It holds no state of its own;
// everything lives in the session controller.
type Server struct {
	ctrl      *session.Controller
	maxUpload int64
	logger    *slog.Logger
}

func NewServer(ctrl *session.Controller, cfg config.SessionConfig, logger *slog.Logger) *Server {
	return &Server{
		ctrl:      ctrl,
		maxUpload: cfg.MaxUploadBytes,
		logger:    logger.With(slog.String("component", "api")),
	}
}

// Register mounts the v1 routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /v1/settings", s.handlePutSettings)
	mux.HandleFunc("POST /v1/record/start", s.handleRecordStart)
	mux.HandleFunc("POST /v1/record/stop", s.handleRecordStop)
	mux.HandleFunc("GET /v1/result", s.handleResult)
	mux.HandleFunc("GET /v1/result/download", s.handleDownload)
	mux.HandleFunc("POST /v1/transcriptions", s.handleTranscription)
}

type settingsPayload struct {
	Language             string `json:"language"`
	NoiseAdjust          bool   `json:"noise_adjust"`
	ListenTimeoutSeconds int    `json:"listen_timeout_seconds"`
}

type resultPayload struct {
	AttemptID string    `json:"attempt_id"`
	Language  string    `json:"language"`
	Text      string    `json:"text,omitempty"`
	Error     string    `json:"error,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	At        time.Time `json:"at"`
}

type statusPayload struct {
	State  string         `json:"state"`
	Result *resultPayload `json:"result,omitempty"`
}

type errorPayload struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	settings := s.ctrl.Settings()
	s.writeJSON(w, http.StatusOK, settingsPayload{
		Language:             settings.Language,
		NoiseAdjust:          settings.NoiseAdjust,
		ListenTimeoutSeconds: int(settings.ListenTimeout / time.Second),
	})
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var payload settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid settings body: %w", err))
		return
	}
	err := s.ctrl.UpdateSettings(session.Settings{
		Language:      payload.Language,
		NoiseAdjust:   payload.NoiseAdjust,
		ListenTimeout: time.Duration(payload.ListenTimeoutSeconds) * time.Second,
	})
	if err != nil {
		s.writeError(w, statusForKind(outcome.KindOf(err)), err)
		return
	}
	s.handleGetSettings(w, r)
}

func (s *Server) handleRecordStart(w http.ResponseWriter, _ *http.Request) {
	if err := s.ctrl.StartRecordingAsync(); err != nil {
		if errors.Is(err, session.ErrBusy) {
			s.writeError(w, http.StatusConflict, err)
			return
		}
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, statusPayload{
		State: s.ctrl.State(session.ColumnMicrophone).String(),
	})
}

func (s *Server) handleRecordStop(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.StopRecording()
	s.writeJSON(w, http.StatusAccepted, statusPayload{
		State: s.ctrl.State(session.ColumnMicrophone).String(),
	})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	col, err := columnParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	payload := statusPayload{State: s.ctrl.State(col).String()}
	if result, ok := s.ctrl.Result(col); ok {
		payload.Result = toResultPayload(result)
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	col, err := columnParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	name, data, ok := s.ctrl.Download(col)
	if !ok {
		s.writeError(w, http.StatusNotFound, errors.New("no transcript available for download"))
		return
	}
	w.Header().Set("Content-Type", session.DownloadMIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleTranscription(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Errorf("upload exceeds %d bytes", s.maxUpload))
			return
		}
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart body: %w", err))
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New(`multipart field "audio" is required`))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}

	result, err := s.ctrl.TranscribeFile(r.Context(), header.Filename, data)
	if err != nil {
		if errors.Is(err, session.ErrBusy) {
			s.writeError(w, http.StatusConflict, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !result.OK() {
		s.writeJSON(w, statusForKind(result.Failure.Kind), toResultPayload(result))
		return
	}
	s.writeJSON(w, http.StatusOK, toResultPayload(result))
}

func toResultPayload(result session.Result) *resultPayload {
	payload := &resultPayload{
		AttemptID: result.AttemptID,
		Language:  result.Language,
		Text:      result.Text,
		At:        result.At,
	}
	if result.Failure != nil {
		payload.Error = result.Failure.Message
		payload.Kind = result.Failure.Kind.String()
	}
	return payload
}

func columnParam(r *http.Request) (session.Column, error) {
	switch source := r.URL.Query().Get("source"); source {
	case "", string(session.ColumnMicrophone):
		return session.ColumnMicrophone, nil
	case string(session.ColumnFile):
		return session.ColumnFile, nil
	default:
		return "", fmt.Errorf("unknown source %q; use %s or %s",
			source, session.ColumnMicrophone, session.ColumnFile)
	}
}

func statusForKind(kind outcome.Kind) int {
	switch kind {
	case outcome.KindInvalidInput:
		return http.StatusBadRequest
	case outcome.KindTimeout:
		return http.StatusRequestTimeout
	case outcome.KindUnintelligible:
		return http.StatusUnprocessableEntity
	case outcome.KindServiceUnavailable:
		return http.StatusBadGateway
	case outcome.KindDeviceError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", slog.String("error", err.Error()))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	payload := errorPayload{Error: err.Error()}
	if kind := outcome.KindOf(err); kind != outcome.KindUnknown {
		payload.Kind = kind.String()
	}
	s.writeJSON(w, status, payload)
}
