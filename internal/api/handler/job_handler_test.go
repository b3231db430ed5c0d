package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trungle-dev/vid2mp3/internal/domain"
	"github.com/trungle-dev/vid2mp3/internal/ledger"
	"github.com/trungle-dev/vid2mp3/internal/objectstore"
)

// capturePublisher records published job messages.
type capturePublisher struct {
	mu       sync.Mutex
	messages [][]byte
	err      error
}

func (p *capturePublisher) PublishWithRetry(ctx context.Context, routingKey string, body []byte, contentType string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, body)
	return nil
}

type handlerFixture struct {
	handler   *JobHandler
	ledger    *ledger.MemoryLedger
	store     *objectstore.MemoryStore
	publisher *capturePublisher
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	memLedger := ledger.NewMemoryLedger()
	memStore := objectstore.NewMemoryStore()
	publisher := &capturePublisher{}

	h := NewJobHandler(&Dependencies{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Ledger:         memLedger,
		Store:          memStore,
		RabbitClient:   publisher,
		JobsRoutingKey: "jobs.convert",
		MaxUploadBytes: 1 << 20,
	})

	return &handlerFixture{
		handler:   h,
		ledger:    memLedger,
		store:     memStore,
		publisher: publisher,
	}
}

func uploadRequest(t *testing.T, fileContents []byte, email string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fw, err := w.CreateFormFile("file", "clip.mp4")
	require.NoError(t, err)
	_, err = fw.Write(fileContents)
	require.NoError(t, err)

	if email != "" {
		require.NoError(t, w.WriteField("email", email))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func newTestContext(w *httptest.ResponseRecorder, req *http.Request) *gin.Context {
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c
}

func TestJobHandler_Upload(t *testing.T) {
	f := newHandlerFixture(t)

	w := httptest.NewRecorder()
	c := newTestContext(w, uploadRequest(t, []byte("video-bytes"), "user@example.com"))

	f.handler.Upload(c)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		JobID string `json:"job_id"`
		State string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, string(domain.StateQueued), resp.State)

	// Ledger entry is queued before the message hits the broker.
	job, err := f.ledger.Get(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateQueued, job.State)
	assert.Equal(t, "user@example.com", job.Requester)
	assert.NotEmpty(t, job.InputRef)

	// Upload body is in the store under the input ref.
	exists, err := f.store.Exists(context.Background(), job.InputRef)
	require.NoError(t, err)
	assert.True(t, exists)

	// Exactly one job message was published, referencing the same job.
	require.Len(t, f.publisher.messages, 1)
	msg, err := domain.ParseJobMessage(f.publisher.messages[0])
	require.NoError(t, err)
	assert.Equal(t, resp.JobID, msg.JobID)
	assert.Equal(t, job.InputRef, msg.InputRef)
}

func TestJobHandler_UploadWithoutFile(t *testing.T) {
	f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", nil)
	w := httptest.NewRecorder()
	c := newTestContext(w, req)

	f.handler.Upload(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.publisher.messages)
}

func TestJobHandler_UploadTooLarge(t *testing.T) {
	f := newHandlerFixture(t)
	f.handler.maxUploadBytes = 4

	w := httptest.NewRecorder()
	c := newTestContext(w, uploadRequest(t, []byte("way past the limit"), ""))

	f.handler.Upload(c)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, 0, f.store.Len())
	assert.Empty(t, f.publisher.messages)
}

func TestJobHandler_UploadPublishFailure(t *testing.T) {
	f := newHandlerFixture(t)
	f.publisher.err = errors.New("broker unreachable")

	w := httptest.NewRecorder()
	c := newTestContext(w, uploadRequest(t, []byte("video-bytes"), ""))

	f.handler.Upload(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestJobHandler_GetStatus(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Create(ctx, "job-1", "input-ref", "user@example.com")
	require.NoError(t, err)
	_, err = f.ledger.Transition(ctx, "job-1", domain.StateCreated, domain.StateQueued, ledger.Fields{})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c := newTestContext(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/job-1", nil))
	c.Params = gin.Params{{Key: "job_id", Value: "job-1"}}

	f.handler.GetStatus(c)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp["job_id"])
	assert.Equal(t, string(domain.StateQueued), resp["state"])
	assert.Equal(t, float64(0), resp["attempt_count"])
	assert.NotContains(t, resp, "output_ref")
	assert.NotContains(t, resp, "error")
}

func TestJobHandler_GetStatusFailedJob(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Create(ctx, "job-1", "input-ref", "")
	require.NoError(t, err)
	_, err = f.ledger.Transition(ctx, "job-1", domain.StateCreated, domain.StateQueued, ledger.Fields{})
	require.NoError(t, err)
	_, err = f.ledger.Transition(ctx, "job-1", domain.StateQueued, domain.StateProcessing, ledger.Fields{IncrementAttempt: true})
	require.NoError(t, err)
	_, err = f.ledger.Transition(ctx, "job-1", domain.StateProcessing, domain.StateFailed, ledger.Fields{
		ErrorKind:   domain.KindConversionFailed,
		ErrorDetail: "ffmpeg exited with status 1",
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c := newTestContext(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/job-1", nil))
	c.Params = gin.Params{{Key: "job_id", Value: "job-1"}}

	f.handler.GetStatus(c)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.StateFailed), resp["state"])
	assert.Equal(t, domain.KindConversionFailed, resp["error"])
	assert.Equal(t, "ffmpeg exited with status 1", resp["error_detail"])
}

func TestJobHandler_GetStatusNotFound(t *testing.T) {
	f := newHandlerFixture(t)

	w := httptest.NewRecorder()
	c := newTestContext(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/missing", nil))
	c.Params = gin.Params{{Key: "job_id", Value: "missing"}}

	f.handler.GetStatus(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJobHandler_Download(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	f.store.Seed("output-ref", []byte("mp3-bytes"))

	_, err := f.ledger.Create(ctx, "job-1", "input-ref", "")
	require.NoError(t, err)
	_, err = f.ledger.Transition(ctx, "job-1", domain.StateCreated, domain.StateQueued, ledger.Fields{})
	require.NoError(t, err)
	_, err = f.ledger.Transition(ctx, "job-1", domain.StateQueued, domain.StateProcessing, ledger.Fields{IncrementAttempt: true})
	require.NoError(t, err)
	_, err = f.ledger.Transition(ctx, "job-1", domain.StateProcessing, domain.StateCompleted, ledger.Fields{OutputRef: "output-ref"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c := newTestContext(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/job-1/download", nil))
	c.Params = gin.Params{{Key: "job_id", Value: "job-1"}}

	f.handler.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "job-1.mp3")
	assert.Equal(t, "mp3-bytes", w.Body.String())
}

func TestJobHandler_DownloadNotCompleted(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Create(ctx, "job-1", "input-ref", "")
	require.NoError(t, err)
	_, err = f.ledger.Transition(ctx, "job-1", domain.StateCreated, domain.StateQueued, ledger.Fields{})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c := newTestContext(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/job-1/download", nil))
	c.Params = gin.Params{{Key: "job_id", Value: "job-1"}}

	f.handler.Download(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestJobHandler_DownloadNotFound(t *testing.T) {
	f := newHandlerFixture(t)

	w := httptest.NewRecorder()
	c := newTestContext(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/missing/download", nil))
	c.Params = gin.Params{{Key: "job_id", Value: "missing"}}

	f.handler.Download(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
