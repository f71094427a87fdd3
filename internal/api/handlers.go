// Rewardly - Personalized Discount Reward Recommendations
// Copyright 2026 D. Marceau (dmarceau)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dmarceau/rewardly

// Package api provides the HTTP surface of the service: dataset uploads,
// training submission, recommendation retrieval, and reward dispatch.
package api

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/dmarceau/rewardly/internal/ingest"
	"github.com/dmarceau/rewardly/internal/mailer"
	"github.com/dmarceau/rewardly/internal/metrics"
	"github.com/dmarceau/rewardly/internal/models"
	"github.com/dmarceau/rewardly/internal/store"
	"github.com/dmarceau/rewardly/internal/trainer"
)

// maxUploadBytes bounds dataset upload bodies.
const maxUploadBytes = 64 << 20 // 64 MiB

// Handler serves all API endpoints.
type Handler struct {
	holder     *models.SnapshotHolder
	pool       *trainer.Pool
	sets       *store.RecommendationStore
	dispatcher *mailer.Dispatcher
	validate   *validator.Validate
	logger     zerolog.Logger
}

// NewHandler wires the handler's collaborators. The dispatcher may be nil
// when email delivery is disabled.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHandler(holder *models.SnapshotHolder, pool *trainer.Pool, sets *store.RecommendationStore, dispatcher *mailer.Dispatcher, logger zerolog.Logger) *Handler {
	return &Handler{
		holder:     holder,
		pool:       pool,
		sets:       sets,
		dispatcher: dispatcher,
		validate:   validator.New(),
		logger:     logger.With().Str("component", "api").Logger(),
	}
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload) //nolint:errcheck // headers already sent
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// datasetRequest is the JSON upload body.
type datasetRequest struct {
	Customers    []models.Customer    `json:"customers" validate:"dive"`
	Products     []models.Product     `json:"products" validate:"dive"`
	Interactions []models.Interaction `json:"interactions" validate:"required,min=1,dive"`
}

// UploadDataset replaces the active dataset snapshot from a JSON body.
func (h *Handler) UploadDataset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var req datasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid dataset: "+err.Error())
		return
	}

	snap := &models.DatasetSnapshot{
		Customers:    req.Customers,
		Products:     req.Products,
		Interactions: req.Interactions,
		UploadedAt:   time.Now().UTC(),
	}
	h.holder.Replace(snap)
	metrics.DatasetInteractions.Set(float64(len(snap.Interactions)))

	h.logger.Info().
		Int("customers", len(snap.Customers)).
		Int("products", len(snap.Products)).
		Int("interactions", len(snap.Interactions)).
		Msg("dataset replaced")

	respondJSON(w, http.StatusCreated, ingest.Result{
		Customers:    len(snap.Customers),
		Products:     len(snap.Products),
		Interactions: len(snap.Interactions),
	})
}

// UploadDatasetCSV replaces the active dataset snapshot from a multipart
// form with customers, products, and interactions CSV files.
func (h *Handler) UploadDatasetCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	customers, _, err := r.FormFile("customers")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing customers file")
		return
	}
	defer func() { _ = customers.Close() }() //nolint:errcheck // read-only form file

	products, _, err := r.FormFile("products")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing products file")
		return
	}
	defer func() { _ = products.Close() }() //nolint:errcheck // read-only form file

	interactions, _, err := r.FormFile("interactions")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing interactions file")
		return
	}
	defer func() { _ = interactions.Close() }() //nolint:errcheck // read-only form file

	snap, res, err := ingest.ParseDataset(customers, products, interactions)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "parse dataset: "+err.Error())
		return
	}
	if len(snap.Interactions) == 0 {
		respondError(w, http.StatusUnprocessableEntity, "dataset contains no usable interactions")
		return
	}

	snap.UploadedAt = time.Now().UTC()
	h.holder.Replace(snap)
	metrics.DatasetInteractions.Set(float64(len(snap.Interactions)))

	h.logger.Info().
		Int("interactions", res.Interactions).
		Int("skipped_rows", res.SkippedRows).
		Msg("dataset replaced from CSV")

	respondJSON(w, http.StatusCreated, res)
}

// trainRequest is the training submission body.
type trainRequest struct {
	NumRewards int `json:"num_rewards" validate:"min=0,max=100"`
}

// trainResponse acknowledges an accepted run.
type trainResponse struct {
	ModelID string `json:"model_id"`
	Status  string `json:"status"`
}

// SubmitTraining queues a training run against the active snapshot and
// returns 202 with the model id.
func (h *Handler) SubmitTraining(w http.ResponseWriter, r *http.Request) {
	snap := h.holder.Current()
	if snap == nil {
		respondError(w, http.StatusConflict, "no dataset uploaded")
		return
	}

	var req trainRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		if err := h.validate.Struct(&req); err != nil {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}

	modelID, err := h.pool.Submit(snap, req.NumRewards)
	if err != nil {
		if errors.Is(err, trainer.ErrQueueFull) {
			respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, trainResponse{ModelID: modelID, Status: trainer.StatusPending})
}

// TrainingStatus reports the state of a training run.
func (h *Handler) TrainingStatus(w http.ResponseWriter, r *http.Request) {
	modelID := chi.URLParam(r, "modelID")
	st, err := h.pool.Status(modelID)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// recommendationsResponse renders a set with entries in stable order.
type recommendationsResponse struct {
	ModelID     string                       `json:"model_id"`
	GeneratedAt time.Time                    `json:"generated_at"`
	Entries     []models.RecommendationEntry `json:"entries"`
}

func sortedEntries(set *models.RecommendationSet) []models.RecommendationEntry {
	entries := make([]models.RecommendationEntry, 0, len(set.Entries))
	for _, e := range set.Entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CustomerID < entries[j].CustomerID
	})
	return entries
}

// GetRecommendations returns the full recommendation set for a model id.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	modelID := chi.URLParam(r, "modelID")
	set, err := h.sets.GetSet(r.Context(), modelID)
	if err != nil {
		if errors.Is(err, store.ErrSetNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, recommendationsResponse{
		ModelID:     set.ModelID,
		GeneratedAt: set.GeneratedAt,
		Entries:     sortedEntries(set),
	})
}

// GetEmailRecommendations returns the email-only view for a model id.
func (h *Handler) GetEmailRecommendations(w http.ResponseWriter, r *http.Request) {
	modelID := chi.URLParam(r, "modelID")
	set, err := h.sets.GetEmailSet(r.Context(), modelID)
	if err != nil {
		if errors.Is(err, store.ErrSetNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, recommendationsResponse{
		ModelID:     set.ModelID,
		GeneratedAt: set.GeneratedAt,
		Entries:     sortedEntries(set),
	})
}

// DispatchRewards emails every addressable entry of a stored set.
func (h *Handler) DispatchRewards(w http.ResponseWriter, r *http.Request) {
	if h.dispatcher == nil {
		respondError(w, http.StatusNotImplemented, "email dispatch is not enabled")
		return
	}

	modelID := chi.URLParam(r, "modelID")
	set, err := h.sets.GetSet(r.Context(), modelID)
	if err != nil {
		if errors.Is(err, store.ErrSetNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	res, err := h.dispatcher.Dispatch(r.Context(), set)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthReady reports readiness: the service is ready once it can accept
// datasets, which requires no external dependency, so readiness tracks a
// populated store handle.
func (h *Handler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	if h.sets == nil {
		respondError(w, http.StatusServiceUnavailable, "store not ready")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
