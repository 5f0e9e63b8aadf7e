package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openscribe/scribed/internal/api"
	"github.com/openscribe/scribed/internal/bus"
	"github.com/openscribe/scribed/internal/capture"
	"github.com/openscribe/scribed/internal/config"
	"github.com/openscribe/scribed/internal/natsserver"
	"github.com/openscribe/scribed/internal/protocol"
	"github.com/openscribe/scribed/internal/recognize"
	"github.com/openscribe/scribed/internal/session"
	"github.com/spf13/afero"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	ctrl, closeAnnounce, err := r.buildSession()
	if err != nil {
		return err
	}
	defer closeAnnounce()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricHandler != nil {
		mux.Handle("/metrics", metricHandler)
	}
	api.NewServer(ctrl, r.cfg.Session, r.logger).Register(mux)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("session_id", ctrl.ID()))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	ctrl.StopRecording()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

// buildSession assembles the capture source, the recognizer backend, and
// the session controller, plus the optional transcript announcement path.
func (r *Runtime) buildSession() (*session.Controller, func(), error) {
	source, err := r.buildSource()
	if err != nil {
		return nil, nil, err
	}
	listener := capture.NewListener(source, r.cfg.Capture, r.logger)

	recognizer, err := r.buildRecognizer()
	if err != nil {
		return nil, nil, err
	}

	ctrl := session.New(r.cfg.Session, recognizer, listener, afero.NewOsFs(), r.logger)

	closeAnnounce := func() {}
	if r.cfg.Bus.Announce {
		closeAnnounce, err = r.wireAnnounce(ctrl)
		if err != nil {
			return nil, nil, err
		}
	}
	return ctrl, closeAnnounce, nil
}

func (r *Runtime) buildSource() (capture.Source, error) {
	switch r.cfg.Capture.Mode {
	case "exec":
		return capture.NewExecSource(r.cfg.Capture)
	default:
		return &capture.MockSource{}, nil
	}
}

func (r *Runtime) buildRecognizer() (recognize.Recognizer, error) {
	switch r.cfg.Recognizer.Mode {
	case "google":
		return recognize.NewGoogleRecognizer(r.cfg.Recognizer, r.cfg.Capture.SampleRate), nil
	case "exec":
		return recognize.NewExecRecognizer(r.cfg.Recognizer)
	default:
		return recognize.NewMockRecognizer(r.cfg.Recognizer.MockText), nil
	}
}

// wireAnnounce publishes successful transcripts on the bus. Publish
// failures are logged and never affect the attempt outcome.
func (r *Runtime) wireAnnounce(ctrl *session.Controller) (func(), error) {
	busCfg := r.cfg.Bus
	embedded, err := natsserver.Start(busCfg, r.logger)
	if err != nil {
		return nil, err
	}
	if embedded != nil {
		busCfg.Servers = []string{fmt.Sprintf("nats://127.0.0.1:%d", busCfg.Port)}
	}

	client, err := bus.Connect(busCfg, r.logger)
	if err != nil {
		embedded.Shutdown()
		return nil, err
	}

	ctrl.SetAnnounce(func(col session.Column, res session.Result) {
		err := client.PublishTranscript(protocol.Transcript{
			SessionID: ctrl.ID(),
			Source:    string(col),
			AttemptID: res.AttemptID,
			Language:  res.Language,
			Text:      res.Text,
			Timestamp: res.At,
		})
		if err != nil {
			r.logger.Warn("transcript announcement failed", slog.String("error", err.Error()))
		}
	})

	return func() {
		client.Close()
		embedded.Shutdown()
	}, nil
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
