package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jsphweid/dsmidiplayer/constants"
	"github.com/jsphweid/dsmidiplayer/engine"
	"github.com/jsphweid/dsmidiplayer/logger"
	"github.com/jsphweid/dsmidiplayer/model"
	"github.com/jsphweid/dsmidiplayer/timeline"
	"github.com/jsphweid/dsmidiplayer/widget"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var listenAddr string

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "addr", constants.GetListenAddr(), "address to listen on")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [midi-file-src]",
	Short: "Serves the player controls over HTTP",
	Long:  `Serves the player controls over HTTP so a hosting page can drive playback.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logger.New(logLevel, false)
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		eng, closePort, err := newEngine(log)
		if err != nil {
			return err
		}
		defer closePort()

		w := newWidget(eng, log)
		defer w.Detach()
		if len(args) == 1 {
			if _, err := w.Attach(ctx, args[0]); err != nil {
				return err
			}
		}

		return serve(ctx, listenAddr, NewRouter(ctx, w, eng, log), log)
	},
}

func serve(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}

	errs := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr))
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type server struct {
	ctx    context.Context
	widget *widget.Widget
	engine engine.Engine
	log    *zap.Logger
}

// NewRouter exposes w over HTTP. Loads started through the router run under
// ctx rather than the request context so they outlive the request.
func NewRouter(ctx context.Context, w *widget.Widget, e engine.Engine, log *zap.Logger) http.Handler {
	s := &server{ctx: ctx, widget: w, engine: e, log: log}

	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/player", s.handleGetPlayer).Methods(http.MethodGet)
	router.HandleFunc("/player/source", s.handleSource).Methods(http.MethodPut)
	router.HandleFunc("/player/toggle", s.handleToggle).Methods(http.MethodPost)
	router.HandleFunc("/player/stop", s.handleStop).Methods(http.MethodPost)
	router.HandleFunc("/player/tempo", s.handleTempo).Methods(http.MethodPut)
	router.HandleFunc("/normalize", s.handleNormalize).Methods(http.MethodPost)

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(router)
}

func (s *server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	s.writeSnapshot(w, http.StatusOK)
}

// handleSource attaches on the first call and swaps the source after that.
// With ?wait=1 it responds once the load has resolved.
func (s *server) handleSource(w http.ResponseWriter, r *http.Request) {
	var input model.SourceRequestBody
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Src == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("body must be {\"src\": \"...\"}"))
		return
	}

	f, err := s.widget.SetSource(input.Src)
	if errors.Is(err, widget.ErrInvalidTransition) {
		f, err = s.widget.Attach(s.ctx, input.Src)
	}
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	if !waitRequested(r) {
		s.writeSnapshot(w, http.StatusAccepted)
		return
	}

	res, err := s.widget.Await(r.Context(), f)
	if err != nil {
		s.writeError(w, http.StatusRequestTimeout, err)
		return
	}
	if res.Err != nil {
		s.writeError(w, statusFor(res.Err), res.Err)
		return
	}
	s.writeSnapshot(w, http.StatusOK)
}

func waitRequested(r *http.Request) bool {
	switch r.URL.Query().Get("wait") {
	case "1", "true":
		return true
	}
	return false
}

func (s *server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if err := s.widget.TogglePlayPause(); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeSnapshot(w, http.StatusOK)
}

func (s *server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.widget.Stop(); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeSnapshot(w, http.StatusOK)
}

func (s *server) handleTempo(w http.ResponseWriter, r *http.Request) {
	var input model.TempoRequestBody
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("body must be {\"bpm\": number}"))
		return
	}
	if _, err := s.widget.SetTempo(input.BPM); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeSnapshot(w, http.StatusOK)
}

// handleNormalize decodes and normalizes a file without touching the
// active session.
func (s *server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	var input model.SourceRequestBody
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Src == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("body must be {\"src\": \"...\"}"))
		return
	}

	raw, err := s.engine.CreatePlayer().LoadFile(r.Context(), input.Src)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	_, stats, err := timeline.NormalizeWithStats(raw)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	s.writeJSON(w, http.StatusOK, model.NormalizeResponse{
		Src:      input.Src,
		Input:    stats.Input,
		Retained: stats.Retained,
		Removed:  stats.Removed,
	})
}

func statusFor(err error) int {
	var le *engine.LoadError
	var malformed *timeline.MalformedEventError
	switch {
	case errors.Is(err, widget.ErrInvalidTempo):
		return http.StatusBadRequest
	case errors.Is(err, widget.ErrInvalidTransition), errors.Is(err, engine.ErrNotArmed):
		return http.StatusConflict
	case errors.As(err, &le), errors.As(err, &malformed):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *server) writeSnapshot(w http.ResponseWriter, status int) {
	snap := s.widget.Snapshot()
	res := model.PlayerResponse{
		State:          snap.State.String(),
		Src:            snap.Src,
		BPM:            snap.BPM,
		PlayPauseLabel: snap.PlayPauseLabel,
		Entries:        snap.Entries,
		Removed:        snap.Removed,
	}
	if snap.Err != nil {
		res.Error = snap.Err.Error()
	}
	s.writeJSON(w, status, res)
}

func (s *server) writeError(w http.ResponseWriter, status int, err error) {
	s.log.Warn("request failed", zap.Int("status", status), zap.Error(err))
	s.writeJSON(w, status, model.ErrorResponse{Error: err.Error()})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("could not encode response", zap.Error(err))
	}
}
