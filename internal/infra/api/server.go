package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"portrait-ai/internal/domain"
	"portrait-ai/internal/domain/ports/adapter"
	"portrait-ai/internal/infra/logging"
	"portrait-ai/internal/infra/metrics"
	red "portrait-ai/internal/infra/redis"
	"portrait-ai/internal/infra/webhook"
	"portrait-ai/internal/usecase"
)

// Server wires the submission and webhook endpoints.
type Server struct {
	trainUC   usecase.TrainingUseCase
	recUC     usecase.ReconcileUseCase
	trainer   adapter.TrainerClient
	store     adapter.Storage
	auth      *AuthManager
	limiter   *red.RateLimiter
	rateLimit int
	rateWin   time.Duration
	prefix    string // storage key prefix for uploads
	log       *zerolog.Logger
}

func NewServer(
	trainUC usecase.TrainingUseCase,
	recUC usecase.ReconcileUseCase,
	trainer adapter.TrainerClient,
	store adapter.Storage,
	auth *AuthManager,
	limiter *red.RateLimiter,
	rateLimit int,
	rateWin time.Duration,
	uploadPrefix string,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "api").Logger()
	return &Server{
		trainUC:   trainUC,
		recUC:     recUC,
		trainer:   trainer,
		store:     store,
		auth:      auth,
		limiter:   limiter,
		rateLimit: rateLimit,
		rateWin:   rateWin,
		prefix:    uploadPrefix,
		log:       &l,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(TraceID)
	r.Use(RequestLog(s.log))
	r.Use(middleware.Recoverer)

	r.Post("/api/train", s.handleTrain)
	r.Get("/api/jobs", s.handleListJobs)
	r.Post("/api/uploads/sign", s.handleSignUpload)
	r.Post("/api/webhooks/training", s.handleTrainingWebhook)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// handleTrain accepts the multipart submission form and starts a remote run.
func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID, err := s.auth.AccountID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	ctx = logging.WithAccountID(ctx, accountID)

	allowed, err := s.limiter.Allow(ctx, red.AccountActionKey(accountID, "train"), s.rateLimit, s.rateWin)
	if err != nil {
		logging.With(ctx, s.log).Error().Err(err).Msg("rate limiter unavailable")
		// fail open: the limiter protects cost, it is not an auth layer
	} else if !allowed {
		writeError(w, http.StatusTooManyRequests, "Too many training requests, slow down")
		return
	}

	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed form")
		return
	}
	req := usecase.SubmitRequest{
		FileKey:   r.FormValue("fileKey"),
		ModelName: r.FormValue("modelName"),
		Gender:    r.FormValue("gender"),
	}

	if _, err := s.trainUC.Submit(ctx, accountID, req); err != nil {
		s.writeSubmitError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true})
}

func (s *Server) writeSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "Missing required fields")
	case errors.Is(err, domain.ErrInsufficientCredits):
		// distinct status so the UI can prompt for an upgrade
		writeError(w, http.StatusPaymentRequired, "Not enough training credits")
	default:
		s.log.Error().Err(err).Msg("training submission failed")
		writeError(w, http.StatusInternalServerError, "Failed to start the model training")
	}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.auth.AccountID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	jobs, err := s.trainUC.ListJobs(r.Context(), accountID)
	if err != nil {
		s.log.Error().Err(err).Msg("list jobs")
		writeError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// handleSignUpload issues a presigned PUT URL so the client can upload the
// training archive without touching storage credentials.
func (s *Server) handleSignUpload(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.auth.AccountID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var in struct {
		FileName string `json:"fileName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.FileName == "" {
		writeError(w, http.StatusBadRequest, "fileName is required")
		return
	}

	key := fmt.Sprintf("%s%s_%d_%s", s.prefix, accountID, time.Now().UnixMilli(), in.FileName)
	url, err := s.store.SignedUploadURL(r.Context(), key, time.Hour)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("sign upload url")
		writeError(w, http.StatusInternalServerError, "Failed to sign upload URL")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signedUrl": url, "fileKey": key})
}

// handleTrainingWebhook is the completion handshake: authenticate the
// delivery, then reconcile local job state. The provider redelivers until it
// sees a 2xx, so everything after a legal transition must not fail the
// response.
func (s *Server) handleTrainingWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		metrics.IncWebhook("error")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	accountID := q.Get("userId")
	modelName := q.Get("modelName")
	fileName := q.Get("fileName")
	if accountID == "" {
		metrics.IncWebhook("unknown_job")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	secret, err := s.trainer.WebhookSigningSecret(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("fetch webhook signing secret")
		metrics.IncWebhook("error")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if err := webhook.Verify(secret,
		r.Header.Get(webhook.HeaderID),
		r.Header.Get(webhook.HeaderTimestamp),
		r.Header.Get(webhook.HeaderSignature),
		body,
	); err != nil {
		s.log.Warn().Str("account_id", accountID).Msg("webhook signature rejected")
		metrics.IncWebhook("bad_signature")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var payload struct {
		Status  string `json:"status"`
		Metrics *struct {
			TotalTime *float64 `json:"total_time"`
		} `json:"metrics"`
		Output *struct {
			Version string `json:"version"`
		} `json:"output"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.IncWebhook("error")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	ev := usecase.CompletionEvent{
		AccountID: accountID,
		ModelName: modelName,
		FileName:  fileName,
		Status:    payload.Status,
	}
	if payload.Metrics != nil {
		ev.DurationSeconds = payload.Metrics.TotalTime
	}
	if payload.Output != nil {
		ev.Version = payload.Output.Version
	}

	if err := s.recUC.Apply(ctx, ev); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncWebhook("unknown_job")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		s.log.Error().Err(err).Str("account_id", accountID).Msg("webhook reconcile failed")
		metrics.IncWebhook("error")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	metrics.IncWebhook("ok")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
