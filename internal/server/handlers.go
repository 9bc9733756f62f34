// internal/server/handlers.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Shlok909/pawsitiveAI/internal/chat"
	"github.com/Shlok909/pawsitiveAI/internal/config"
	"github.com/Shlok909/pawsitiveAI/internal/media"
	"github.com/Shlok909/pawsitiveAI/internal/report"
	"github.com/Shlok909/pawsitiveAI/internal/session"
	"github.com/Shlok909/pawsitiveAI/internal/store"
)

// Handler exposes the analysis pipeline, the report store, capture
// sessions, and report chat over HTTP.
type Handler struct {
	coord    *session.Coordinator
	store    store.Store
	chats    *chat.Manager
	recorder *media.Recorder
	intake   media.Intake

	uploadConfigured bool
	inlineLimit      int64
	maxUpload        int64
	profile          config.ProfileConfig
	apiKey           string
}

// NewHandler wires the HTTP surface over the already-constructed pieces.
func NewHandler(coord *session.Coordinator, st store.Store, chats *chat.Manager,
	recorder *media.Recorder, intake media.Intake, cfg *config.Config, uploadConfigured bool) *Handler {
	return &Handler{
		coord:            coord,
		store:            st,
		chats:            chats,
		recorder:         recorder,
		intake:           intake,
		uploadConfigured: uploadConfigured,
		inlineLimit:      cfg.InlineLimitBytes,
		maxUpload:        cfg.MaxUploadBytes,
		profile:          cfg.Profile,
		apiKey:           cfg.APIKey,
	}
}

// Routes builds the router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if h.apiKey != "" {
			r.Use(h.auth)
		}

		r.Post("/analyze", h.startAnalysis)
		r.Get("/analyze/status", h.analysisStatus)

		r.Get("/reports", h.listReports)
		r.Get("/reports/{id}", h.getReport)

		r.Get("/chat/{id}", h.getChat)
		r.Post("/chat/{id}", h.postChat)

		r.Post("/capture/start", h.captureStart)
		r.Post("/capture/chunks", h.captureChunk)
		r.Post("/capture/stop", h.captureStop)
		r.Delete("/capture", h.captureDiscard)
	})

	return r
}

func (h *Handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("Authorization")
		if !strings.HasPrefix(got, "Bearer ") || strings.TrimPrefix(got, "Bearer ") != h.apiKey {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("status", ww.Status()).
			WithField("took", time.Since(start).Round(time.Millisecond).String()).
			Info("request")
	})
}

// startAnalysis accepts multipart media plus the dog profile and begins a
// single-flight analysis attempt. Responds 202 with the initial snapshot.
func (h *Handler) startAnalysis(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+(1<<20))

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	file, header, err := r.FormFile("media")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing media file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read media")
		return
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	mtype, err := h.intake.Accept(header.Filename, int64(len(data)), head)
	if err != nil {
		h.writeMediaError(w, err)
		return
	}

	sub, err := h.subject(r.FormValue("breed"), r.FormValue("age"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := session.Input{Subject: sub}
	if h.uploadConfigured {
		in.Raw = &session.RawMedia{Name: header.Filename, MIME: mtype, Data: data}
	} else {
		if int64(len(data)) > h.inlineLimit {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large to send inline")
			return
		}
		in.Ref = media.Inline(mtype, data)
	}

	h.beginAttempt(w, r, in)
}

// beginAttempt starts the attempt detached from the request lifetime and
// writes the 202 response.
func (h *Handler) beginAttempt(w http.ResponseWriter, r *http.Request, in session.Input) {
	attempt, err := h.coord.Start(context.WithoutCancel(r.Context()), in)
	if err != nil {
		if errors.Is(err, session.ErrAttemptInFlight) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, attempt.Snapshot())
}

func (h *Handler) analysisStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.coord.Current())
}

func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.store.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}

	type item struct {
		ID      string        `json:"id"`
		Created string        `json:"created,omitempty"`
		Report  report.Report `json:"report"`
	}
	items := make([]item, 0, len(reports))
	for _, sr := range reports {
		it := item{ID: sr.ID, Report: sr.Report}
		if t, err := store.CreationTime(sr.ID); err == nil {
			it.Created = t.UTC().Format(time.RFC3339)
		}
		items = append(items, it)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reports": items})
}

func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rep, err := h.store.Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeNotFound(w, id)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load report")
		return
	}
	writeJSON(w, http.StatusOK, store.StoredReport{ID: id, Report: *rep})
}

func (h *Handler) getChat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, err := h.chats.Session(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeNotFound(w, id)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to open chat")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"report_id": s.ReportID(),
		"messages":  s.Messages(),
		"suggested": s.Suggestions(),
	})
}

func (h *Handler) postChat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, err := h.chats.Session(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeNotFound(w, id)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to open chat")
		return
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, "empty question")
		return
	}

	answer, err := s.Ask(r.Context(), body.Text)
	if err != nil {
		writeError(w, http.StatusBadGateway, "assistant unavailable, please try again")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"answer":   answer,
		"messages": s.Messages(),
	})
}

func (h *Handler) captureStart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MIME string `json:"mime"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	if body.MIME == "" {
		body.MIME = "video/webm"
	}

	if err := h.recorder.Start(body.MIME); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"recording": true})
}

func (h *Handler) captureChunk(w http.ResponseWriter, r *http.Request) {
	chunk, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUpload))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "chunk too large")
		return
	}

	accepted, err := h.recorder.Append(chunk)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accepted":   accepted,
		"elapsed_ms": h.recorder.Elapsed().Milliseconds(),
	})
}

// captureStop finalizes the recording and hands it straight to analysis.
func (h *Handler) captureStop(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Breed string `json:"breed"`
		Age   string `json:"age"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	mtype, data, err := h.recorder.Stop()
	if err != nil {
		h.writeMediaError(w, err)
		return
	}

	sub, err := h.subject(body.Breed, body.Age)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := session.Input{Subject: sub}
	name := "capture" + extensionFor(mtype)
	if h.uploadConfigured {
		in.Raw = &session.RawMedia{Name: name, MIME: mtype, Data: data}
	} else {
		if int64(len(data)) > h.inlineLimit {
			writeError(w, http.StatusRequestEntityTooLarge, "recording too large to send inline")
			return
		}
		in.Ref = media.Inline(mtype, data)
	}

	h.beginAttempt(w, r, in)
}

func (h *Handler) captureDiscard(w http.ResponseWriter, r *http.Request) {
	h.recorder.Discard()
	w.WriteHeader(http.StatusNoContent)
}

// subject fills missing fields from the configured default profile.
func (h *Handler) subject(breed, age string) (report.Subject, error) {
	sub := report.Subject{Breed: h.profile.Breed, AgeYears: h.profile.AgeYears}
	if breed != "" {
		sub.Breed = breed
	}
	if age != "" {
		years, err := strconv.ParseFloat(age, 64)
		if err != nil || years < 0 {
			return report.Subject{}, fmt.Errorf("invalid age %q", age)
		}
		sub.AgeYears = years
	}
	if sub.Breed == "" {
		return report.Subject{}, errors.New("breed is required")
	}
	return sub, nil
}

func (h *Handler) writeMediaError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, media.ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case media.IsInputRejected(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, media.ErrNotRecording), errors.Is(err, media.ErrRecorderBusy):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeNotFound points the client back at the history view, mirroring how
// stale report links are handled everywhere.
func (h *Handler) writeNotFound(w http.ResponseWriter, id string) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error":    fmt.Sprintf("report %s not found", id),
		"redirect": "history",
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func extensionFor(mtype string) string {
	exts, err := mime.ExtensionsByType(mtype)
	if err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
