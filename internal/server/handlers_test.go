// internal/server/handlers_test.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shlok909/pawsitiveAI/internal/chat"
	"github.com/Shlok909/pawsitiveAI/internal/config"
	"github.com/Shlok909/pawsitiveAI/internal/media"
	"github.com/Shlok909/pawsitiveAI/internal/report"
	"github.com/Shlok909/pawsitiveAI/internal/session"
	"github.com/Shlok909/pawsitiveAI/internal/store"
)

func sampleReport() *report.Report {
	return &report.Report{
		Emotion:     "happy",
		Confidence:  91,
		Translation: "I am having a great time!",
		BodyLanguage: report.BodyLanguage{
			Tail: "high_wag", Ears: "perked", Posture: "play_bow", Eyes: "soft", Mouth: "pant",
		},
		Health: report.Health{
			Gait: "normal", Eyes: "clear", Breathing: "normal", Skin: "healthy", Urgency: "green",
		},
		Tips: []string{"Keep up the play sessions"},
	}
}

type stubAnalyzer struct {
	release chan struct{}
	rep     *report.Report
	err     error
}

func (s *stubAnalyzer) Analyze(ctx context.Context, sub report.Subject, ref media.Reference) (*report.Report, int64, error) {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, 0, s.err
	}
	return s.rep, 5, nil
}

type stubAnswerer struct {
	answer string
	err    error
}

func (s *stubAnswerer) Ask(ctx context.Context, question, grounding string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

type testEnv struct {
	handler  http.Handler
	store    store.Store
	analyzer *stubAnalyzer
	answerer *stubAnswerer
	recorder *media.Recorder
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()

	if cfg == nil {
		cfg = &config.Config{
			MaxUploadBytes:   100 << 20,
			InlineLimitBytes: 20 << 20,
			Profile:          config.ProfileConfig{Breed: "Mixed", AgeYears: 3},
		}
	}

	st := store.NewMemory()
	analyzer := &stubAnalyzer{rep: sampleReport()}
	answerer := &stubAnswerer{answer: "A high tail wag means excitement."}
	coord := session.NewCoordinator(analyzer, media.NewUploader("", ""), st, time.Millisecond)
	chats := chat.NewManager(st, answerer)
	recorder := media.NewRecorder(30*time.Millisecond, 15*time.Second)
	intake := media.NewIntake(cfg.MaxUploadBytes)

	h := NewHandler(coord, st, chats, recorder, intake, cfg, false)
	return &testEnv{
		handler:  h.Routes(),
		store:    st,
		analyzer: analyzer,
		answerer: answerer,
		recorder: recorder,
	}
}

func pngBytes() []byte {
	sig := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	return append(sig, bytes.Repeat([]byte{0x42}, 256)...)
}

func multipartMedia(t *testing.T, name string, data []byte, breed, age string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("media", name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	if breed != "" {
		require.NoError(t, mw.WriteField("breed", breed))
	}
	if age != "" {
		require.NoError(t, mw.WriteField("age", age))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) do(method, path, contentType string, body *bytes.Buffer) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (e *testEnv) waitComplete(t *testing.T) string {
	t.Helper()
	var id string
	require.Eventually(t, func() bool {
		rec := e.do("GET", "/api/v1/analyze/status", "", nil)
		body := decodeBody(t, rec)
		if body["state"] == "complete" {
			id, _ = body["report_id"].(string)
			return true
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
	return id
}

func TestAnalyzeFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	body, ctype := multipartMedia(t, "dog.png", pngBytes(), "Border Collie", "4")
	rec := env.do("POST", "/api/v1/analyze", ctype, body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	id := env.waitComplete(t)
	require.NotEmpty(t, id)

	rec = env.do("GET", "/api/v1/reports/"+id, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	rep := got["report"].(map[string]interface{})
	assert.Equal(t, "happy", rep["emotion"])

	rec = env.do("GET", "/api/v1/reports", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody(t, rec)
	assert.Len(t, list["reports"], 1)
}

func TestAnalyzeSingleFlight(t *testing.T) {
	env := newTestEnv(t, nil)
	env.analyzer.release = make(chan struct{})

	body, ctype := multipartMedia(t, "dog.png", pngBytes(), "Corgi", "2")
	rec := env.do("POST", "/api/v1/analyze", ctype, body)
	require.Equal(t, http.StatusAccepted, rec.Code)

	body, ctype = multipartMedia(t, "dog.png", pngBytes(), "Corgi", "2")
	rec = env.do("POST", "/api/v1/analyze", ctype, body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(env.analyzer.release)
	env.waitComplete(t)
}

func TestAnalyzeRejectsWrongMediaType(t *testing.T) {
	env := newTestEnv(t, nil)

	body, ctype := multipartMedia(t, "notes.txt", []byte("just some plain text, definitely not a dog"), "Corgi", "2")
	rec := env.do("POST", "/api/v1/analyze", ctype, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeRejectsBadAge(t *testing.T) {
	env := newTestEnv(t, nil)

	body, ctype := multipartMedia(t, "dog.png", pngBytes(), "Corgi", "puppy")
	rec := env.do("POST", "/api/v1/analyze", ctype, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeUsesProfileDefaults(t *testing.T) {
	env := newTestEnv(t, nil)

	body, ctype := multipartMedia(t, "dog.png", pngBytes(), "", "")
	rec := env.do("POST", "/api/v1/analyze", ctype, body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	env.waitComplete(t)
}

func TestReportNotFoundRedirectsToHistory(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do("GET", "/api/v1/reports/1700000000000", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "history", body["redirect"])
}

func TestChatFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	id, err := env.store.Put(sampleReport())
	require.NoError(t, err)

	rec := env.do("GET", "/api/v1/chat/"+id, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	msgs := body["messages"].([]interface{})
	require.Len(t, msgs, 1)
	greeting := msgs[0].(map[string]interface{})
	assert.Contains(t, greeting["text"], "happy")
	assert.Len(t, body["suggested"], 4)

	payload := bytes.NewBufferString(`{"text": "What does the tail wag mean?"}`)
	rec = env.do("POST", "/api/v1/chat/"+id, "application/json", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, env.answerer.answer, body["answer"])
	assert.Len(t, body["messages"], 3)
}

func TestChatAssistantUnavailable(t *testing.T) {
	env := newTestEnv(t, nil)
	id, err := env.store.Put(sampleReport())
	require.NoError(t, err)

	env.answerer.err = chat.ErrAssistantUnavailable
	payload := bytes.NewBufferString(`{"text": "hello?"}`)
	rec := env.do("POST", "/api/v1/chat/"+id, "application/json", payload)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestChatUnknownReport(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do("GET", "/api/v1/chat/1700000000000", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "history", body["redirect"])
}

func TestCaptureLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do("POST", "/api/v1/capture/start", "application/json", bytes.NewBufferString(`{"mime": "video/webm"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do("POST", "/api/v1/capture/start", "application/json", bytes.NewBufferString(`{"mime": "video/webm"}`))
	assert.Equal(t, http.StatusConflict, rec.Code, "second session refused while one is active")

	rec = env.do("POST", "/api/v1/capture/chunks", "application/octet-stream", bytes.NewBuffer(pngBytes()))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["accepted"])

	// Recorder minimum is 30ms in the test env.
	time.Sleep(100 * time.Millisecond)

	rec = env.do("POST", "/api/v1/capture/stop", "application/json", bytes.NewBufferString(`{"breed": "Husky", "age": "5"}`))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	env.waitComplete(t)
}

func TestCaptureStopTooShort(t *testing.T) {
	env := newTestEnv(t, &config.Config{
		MaxUploadBytes:   100 << 20,
		InlineLimitBytes: 20 << 20,
		Profile:          config.ProfileConfig{Breed: "Mixed", AgeYears: 3},
	})
	// Recorder in the env has a 30ms minimum; stop immediately.
	rec := env.do("POST", "/api/v1/capture/start", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do("POST", "/api/v1/capture/stop", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCaptureDiscard(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do("POST", "/api/v1/capture/start", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do("DELETE", "/api/v1/capture", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do("POST", "/api/v1/capture/stop", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "stop after discard finds no session")
}

func TestCaptureChunkWithoutSession(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do("POST", "/api/v1/capture/chunks", "application/octet-stream", bytes.NewBuffer([]byte{1, 2, 3}))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBearerAuth(t *testing.T) {
	env := newTestEnv(t, &config.Config{
		MaxUploadBytes:   100 << 20,
		InlineLimitBytes: 20 << 20,
		Profile:          config.ProfileConfig{Breed: "Mixed", AgeYears: 3},
		APIKey:           "secret",
	})

	rec := env.do("GET", "/api/v1/reports", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest("GET", "/api/v1/reports", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("GET", "/api/v1/reports", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthSkipsAuth(t *testing.T) {
	env := newTestEnv(t, &config.Config{
		MaxUploadBytes:   100 << 20,
		InlineLimitBytes: 20 << 20,
		APIKey:           "secret",
	})

	rec := env.do("GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusIdleBeforeFirstAttempt(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do("GET", "/api/v1/analyze/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "idle", body["state"])
}

func TestAnalyzeFailureSurfacesInStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	env.analyzer.err = errors.New("model melted down")

	body, ctype := multipartMedia(t, "dog.png", pngBytes(), "Corgi", "2")
	rec := env.do("POST", "/api/v1/analyze", ctype, body)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		rec := env.do("GET", "/api/v1/analyze/status", "", nil)
		return decodeBody(t, rec)["state"] == "error"
	}, 2*time.Second, 5*time.Millisecond)

	list := env.do("GET", "/api/v1/reports", "", nil)
	assert.Len(t, decodeBody(t, list)["reports"], 0, "failed attempt stores nothing")
}
