package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"library-encoder/constant"
	"library-encoder/dto"
	"library-encoder/handler"
	"library-encoder/registry"
)

type stubService struct {
	startId   uuid.UUID
	startErr  error
	snapshot  *registry.Snapshot
	statusErr error
}

func (s *stubService) StartEncoding(context.Context, string, string) (uuid.UUID, error) {
	return s.startId, s.startErr
}

func (s *stubService) GetStatus(uuid.UUID) (*registry.Snapshot, error) {
	return s.snapshot, s.statusErr
}

func (s *stubService) Process(context.Context, dto.EncodeJobMessage) error {
	return nil
}

func newRouter(svc *stubService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/encode-library", handler.EncodeLibrary(svc))
	r.GET("/api/task/status/:id", handler.TaskStatus(svc))
	r.GET("/api/task-status/:id", handler.TaskStatus(svc))
	return r
}

func TestEncodeLibraryAccepted(t *testing.T) {
	jobId := uuid.New()
	r := newRouter(&stubService{startId: jobId})

	req := httptest.NewRequest(http.MethodPost, "/api/encode-library", nil)
	req.Header.Set("X-User-Id", "user-1")
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	var resp dto.EncodeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.TaskId != jobId {
		t.Fatalf("expected task_id %s, got %s", jobId, resp.TaskId)
	}
}

func TestEncodeLibraryRequiresUserHeader(t *testing.T) {
	r := newRouter(&stubService{})

	req := httptest.NewRequest(http.MethodPost, "/api/encode-library", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestEncodeLibraryConflictOnActiveJob(t *testing.T) {
	r := newRouter(&stubService{startErr: registry.ErrJobAlreadyActive})

	req := httptest.NewRequest(http.MethodPost, "/api/encode-library", nil)
	req.Header.Set("X-User-Id", "user-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestTaskStatusReturnsSnapshot(t *testing.T) {
	jobId := uuid.New()
	svc := &stubService{snapshot: &registry.Snapshot{
		JobId:     jobId,
		State:     constant.JobStateSuccess,
		Progress:  100,
		Message:   "library encoding complete",
		Result:    &dto.JobResult{TracksProcessed: 3, EmbeddingsGenerated: 2},
		Processed: 3,
		Total:     3,
	}}
	r := newRouter(svc)

	for _, path := range []string{"/api/task/status/" + jobId.String(), "/api/task-status/" + jobId.String()} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
		var resp dto.StatusResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s: invalid response body: %v", path, err)
		}
		if resp.State != "SUCCESS" || resp.Progress != 100 {
			t.Fatalf("%s: unexpected response %+v", path, resp)
		}
		if resp.Result == nil || resp.Result.EmbeddingsGenerated != 2 {
			t.Fatalf("%s: unexpected result %+v", path, resp.Result)
		}
	}
}

func TestTaskStatusUnknownJob(t *testing.T) {
	r := newRouter(&stubService{statusErr: registry.ErrJobNotFound})

	req := httptest.NewRequest(http.MethodGet, "/api/task/status/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestTaskStatusMalformedId(t *testing.T) {
	r := newRouter(&stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/task/status/not-a-job", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
