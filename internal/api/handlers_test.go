// Rewardly - Personalized Discount Reward Recommendations
// Copyright 2026 D. Marceau (dmarceau)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dmarceau/rewardly

package api

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/dmarceau/rewardly/internal/models"
	"github.com/dmarceau/rewardly/internal/recommend"
	"github.com/dmarceau/rewardly/internal/recommend/storage"
	"github.com/dmarceau/rewardly/internal/store"
	"github.com/dmarceau/rewardly/internal/trainer"
)

type testServer struct {
	router http.Handler
	holder *models.SnapshotHolder
	sets   *store.RecommendationStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := store.Open("")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	sets := store.NewRecommendationStore(db)

	artifacts, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	engine := recommend.NewEngine(recommend.Config{
		Factors:        4,
		Epochs:         2,
		LearningRate:   0.05,
		Regularization: 0.01,
		MaxUsers:       10,
		DefaultRewards: 3,
	}, recommend.NewFactorTrainer(), artifacts, sets, zerolog.Nop())

	pool := trainer.NewPool(engine, trainer.Config{Workers: 1, QueueSize: 4}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = pool.Serve(ctx) }()

	holder := models.NewSnapshotHolder()
	h := NewHandler(holder, pool, sets, nil, zerolog.Nop())

	return &testServer{
		router: NewRouter(h, RouterConfig{}),
		holder: holder,
		sets:   sets,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func testDataset() datasetRequest {
	return datasetRequest{
		Customers: []models.Customer{
			{CustomerID: "C1", Gender: "Female", AgeGroup: "Senior"},
			{CustomerID: "C2", Gender: "Male", AgeGroup: "Young Adult"},
		},
		Products: []models.Product{
			{ProductID: "P1", Category: "Fashion", Price: 150},
			{ProductID: "P2", Category: "Books", Price: 20},
		},
		Interactions: []models.Interaction{
			{CustomerID: "C1", ProductID: "P1", Rating: 5, PurchaseCount: 3, Email: "c1@example.com"},
			{CustomerID: "C1", ProductID: "P2", Rating: 4, PurchaseCount: 1, Email: "c1@example.com"},
			{CustomerID: "C2", ProductID: "P2", Rating: 3, PurchaseCount: 2},
		},
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	if rec := s.do(t, http.MethodGet, "/api/v1/health/live", nil); rec.Code != http.StatusOK {
		t.Errorf("live status = %d, want 200", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/v1/health/ready", nil); rec.Code != http.StatusOK {
		t.Errorf("ready status = %d, want 200", rec.Code)
	}
}

func TestUploadDatasetJSON(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/datasets", testDataset())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	snap := s.holder.Current()
	if snap == nil {
		t.Fatal("snapshot not installed")
	}
	if len(snap.Interactions) != 3 {
		t.Errorf("interactions = %d, want 3", len(snap.Interactions))
	}
}

func TestUploadDatasetRejectsInvalidJSON(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/datasets", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUploadDatasetRejectsEmptyInteractions(t *testing.T) {
	s := newTestServer(t)

	ds := testDataset()
	ds.Interactions = nil
	rec := s.do(t, http.MethodPost, "/api/v1/datasets", ds)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422: %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitTrainingWithoutDataset(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/train", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
}

func TestTrainAndFetchRecommendations(t *testing.T) {
	s := newTestServer(t)

	if rec := s.do(t, http.MethodPost, "/api/v1/datasets", testDataset()); rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}

	rec := s.do(t, http.MethodPost, "/api/v1/train", trainRequest{NumRewards: 2})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("train status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	var tr trainResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &tr); err != nil {
		t.Fatalf("decode train response: %v", err)
	}
	if tr.ModelID == "" || tr.Status != trainer.StatusPending {
		t.Fatalf("train response = %+v", tr)
	}

	waitForCompletion(t, s, tr.ModelID)

	rec = s.do(t, http.MethodGet, "/api/v1/recommendations/"+tr.ModelID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("recommendations status = %d: %s", rec.Code, rec.Body.String())
	}
	var full recommendationsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &full); err != nil {
		t.Fatalf("decode recommendations: %v", err)
	}
	if full.ModelID != tr.ModelID {
		t.Errorf("ModelID = %q, want %q", full.ModelID, tr.ModelID)
	}
	if len(full.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(full.Entries))
	}
	// Stable ordering by customer id.
	if full.Entries[0].CustomerID != "C1" || full.Entries[1].CustomerID != "C2" {
		t.Errorf("entry order = %s, %s", full.Entries[0].CustomerID, full.Entries[1].CustomerID)
	}
	for _, e := range full.Entries {
		for _, rw := range e.Rewards {
			if rw.DiscountPercentage < 5 || rw.DiscountPercentage > 50 {
				t.Errorf("discount %d out of range for %s", rw.DiscountPercentage, e.CustomerID)
			}
			if len(rw.RewardCode) != 5 {
				t.Errorf("code %q not 5 chars", rw.RewardCode)
			}
		}
	}

	rec = s.do(t, http.MethodGet, "/api/v1/recommendations/"+tr.ModelID+"/emails", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("email view status = %d: %s", rec.Code, rec.Body.String())
	}
	var emails recommendationsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &emails); err != nil {
		t.Fatalf("decode email view: %v", err)
	}
	if len(emails.Entries) != 1 || emails.Entries[0].CustomerID != "C1" {
		t.Errorf("email view entries = %+v, want only C1", emails.Entries)
	}
}

func TestTrainingStatusUnknownModel(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/train/no-such-model", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRecommendationsNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/recommendations/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestDispatchDisabled(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/recommendations/some-model/dispatch", nil)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501: %s", rec.Code, rec.Body.String())
	}
}

func TestUploadDatasetCSV(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	files := map[string]string{
		"customers":    "customer_id,gender,age_group\nC1,Female,Senior\n",
		"products":     "product_id,category,price\nP1,Fashion,150\n",
		"interactions": "customer_id,product_id,rating,purchase_count,email\nC1,P1,5,3,c1@example.com\n",
	}
	for field, content := range files {
		part, err := mw.CreateFormFile(field, field+".csv")
		if err != nil {
			t.Fatalf("CreateFormFile(%s): %v", field, err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", field, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/datasets/csv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	snap := s.holder.Current()
	if snap == nil || len(snap.Interactions) != 1 {
		t.Fatalf("snapshot = %+v, want 1 interaction", snap)
	}
	if snap.Email("C1") != "c1@example.com" {
		t.Errorf("Email(C1) = %q", snap.Email("C1"))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "rewardly_") {
		t.Error("metrics output missing rewardly_ series")
	}
}

func waitForCompletion(t *testing.T, s *testServer, modelID string) {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		rec := s.do(t, http.MethodGet, "/api/v1/train/"+modelID, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status endpoint returned %d: %s", rec.Code, rec.Body.String())
		}
		var st trainer.RunStatus
		if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		switch st.Status {
		case trainer.StatusCompleted:
			return
		case trainer.StatusFailed:
			t.Fatalf("training failed: %s", st.Error)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("training run %s did not complete in time", modelID)
}
