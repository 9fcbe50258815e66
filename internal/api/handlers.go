package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mentingo/mentingo-slide-service/internal/domain/entity"
	"github.com/mentingo/mentingo-slide-service/internal/domain/port"
	"github.com/mentingo/mentingo-slide-service/internal/encode"
	"github.com/mentingo/mentingo-slide-service/internal/slides"
	"go.uber.org/zap"
)

type startExtractionRequest struct {
	UserID       string              `json:"user_id"`
	UserEmail    string              `json:"user_email,omitempty"`
	VideoKey     string              `json:"video_key,omitempty"`
	FileSize     int64               `json:"file_size,omitempty"`
	Settings     *settingsPatch      `json:"settings,omitempty"`
	ClientSlides []entity.Slide      `json:"client_slides,omitempty"`
	Trace        []slides.TracePoint `json:"trace,omitempty"`
	Duration     float64             `json:"duration,omitempty"`
}

// settingsPatch overlays caller-supplied values on the service defaults.
// Pointer fields distinguish "absent" from an explicit zero, which matters
// for max_slides where zero is a valid budget.
type settingsPatch struct {
	CorrelationThreshold *float64                 `json:"correlation_threshold,omitempty"`
	MinInterval          *float64                 `json:"min_interval,omitempty"`
	MaxSlides            *int                     `json:"max_slides,omitempty"`
	ROI                  *entity.RegionOfInterest `json:"roi,omitempty"`
}

func (p *settingsPatch) applyTo(base entity.ExtractionSettings) entity.ExtractionSettings {
	if p == nil {
		return base
	}
	if p.CorrelationThreshold != nil {
		base.CorrelationThreshold = *p.CorrelationThreshold
	}
	if p.MinInterval != nil {
		base.MinInterval = *p.MinInterval
	}
	if p.MaxSlides != nil {
		base.MaxSlides = *p.MaxSlides
	}
	if p.ROI != nil {
		base.ROI = p.ROI
	}
	return base
}

type slideView struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Timestamp   float64 `json:"timestamp"`
	Correlation float64 `json:"correlation"`
	Heuristic   bool    `json:"heuristic,omitempty"`
}

type extractionResponse struct {
	RunID      string             `json:"run_id"`
	Status     entity.RunStatus   `json:"status"`
	Progress   int                `json:"progress,omitempty"`
	SlideCount int                `json:"slide_count"`
	Heuristic  bool               `json:"heuristic,omitempty"`
	Slides     []slideView        `json:"slides,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// handleStartExtraction starts an asynchronous run for a stored video.
// When the caller already computed the slide list client-side, or supplies
// a correlation trace to run detection over, the run completes synchronously
// without touching the queue.
func (s *Server) handleStartExtraction(w http.ResponseWriter, r *http.Request) {
	var req startExtractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	settings := req.Settings.applyTo(s.defaults)
	if err := settings.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(req.Trace) > 0 {
		req.ClientSlides = slides.DetectFromTrace(uuid.NewString(), req.Trace, req.Duration, settings)
		s.acceptClientSlides(w, r, req, settings)
		return
	}
	if len(req.ClientSlides) > 0 {
		s.acceptClientSlides(w, r, req, settings)
		return
	}

	if req.VideoKey == "" {
		s.writeError(w, http.StatusBadRequest, "either video_key, client_slides or a correlation trace is required")
		return
	}

	run := entity.NewExtractionRun(req.UserID, req.VideoKey, req.FileSize, settings, s.maxRetry)
	if err := s.repo.Create(r.Context(), run); err != nil {
		s.logger.Error("failed to create run", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to create extraction run")
		return
	}
	if err := s.tracker.Create(r.Context(), run.ID.String()); err != nil {
		s.logger.Error("failed to create task", zap.Error(err))
	}

	msg := entity.SlideExtractionMessage{
		RunID:     run.ID,
		UserID:    req.UserID,
		VideoKey:  req.VideoKey,
		FileSize:  req.FileSize,
		UserEmail: req.UserEmail,
		Settings:  settings,
	}
	body, _ := json.Marshal(msg)
	if err := s.jobs.PublishJob(r.Context(), body); err != nil {
		s.logger.Error("failed to publish extraction job", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to enqueue extraction run")
		return
	}

	s.writeJSON(w, http.StatusAccepted, extractionResponse{
		RunID:  run.ID.String(),
		Status: run.Status,
	})
}

// acceptClientSlides records a pre-computed slide list as a completed run.
// Detection already happened next to the data source; only metadata is kept.
func (s *Server) acceptClientSlides(w http.ResponseWriter, r *http.Request, req startExtractionRequest, settings entity.ExtractionSettings) {
	run := entity.NewExtractionRun(req.UserID, req.VideoKey, req.FileSize, settings, s.maxRetry)

	duration := 0.0
	heuristic := false
	views := make([]slideView, 0, len(req.ClientSlides))
	for _, slide := range req.ClientSlides {
		if slide.Timestamp > duration {
			duration = slide.Timestamp
		}
		heuristic = heuristic || slide.Heuristic
		views = append(views, slideView{
			ID:          slide.ID,
			Title:       slide.Title,
			Timestamp:   slide.Timestamp,
			Correlation: slide.Correlation,
			Heuristic:   slide.Heuristic,
		})
	}

	run.MarkCompleted("", "", len(req.ClientSlides), duration, heuristic)
	if err := s.repo.Create(r.Context(), run); err != nil {
		s.logger.Error("failed to record client extraction", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to record extraction run")
		return
	}

	s.writeJSON(w, http.StatusOK, extractionResponse{
		RunID:      run.ID.String(),
		Status:     run.Status,
		SlideCount: len(req.ClientSlides),
		Heuristic:  heuristic,
		Slides:     views,
	})
}

func (s *Server) handleGetExtraction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := s.repo.FindByID(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "extraction run not found")
		return
	}

	resp := extractionResponse{
		RunID:      run.ID.String(),
		Status:     run.Status,
		SlideCount: run.SlideCount,
		Heuristic:  run.Heuristic,
		Error:      run.ErrorMessage,
	}
	if status, err := s.tracker.Get(r.Context(), id.String()); err == nil {
		resp.Progress = status.Progress
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelExtraction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	if err := s.tracker.RequestCancel(r.Context(), id.String()); err != nil {
		if errors.Is(err, port.ErrTaskNotFound) {
			s.writeError(w, http.StatusNotFound, "extraction run not found")
			return
		}
		s.logger.Error("failed to request cancel", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to cancel extraction run")
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{"run_id": id.String(), "status": "cancellation requested"})
}

// handleDownloadArtifact serves the stored archive/document of a completed
// run, warming the artifact cache on first access.
func (s *Server) handleDownloadArtifact(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	form := r.URL.Query().Get("format")
	if form == "" {
		form = "archive"
	}
	if form != "archive" && form != "document" {
		s.writeError(w, http.StatusBadRequest, `format must be "archive" or "document"`)
		return
	}

	run, err := s.repo.FindByID(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "extraction run not found")
		return
	}
	if run.Status != entity.RunStatusCompleted {
		s.writeError(w, http.StatusConflict, fmt.Sprintf("run is %s, artifacts not available", run.Status))
		return
	}

	objectKey := run.ArchiveKey
	contentType := "application/zip"
	if form == "document" {
		objectKey = run.DocumentKey
		contentType = "application/pdf"
	}
	if objectKey == "" {
		s.writeError(w, http.StatusNotFound, "run has no stored "+form+" artifact")
		return
	}

	cacheKey := id.String() + ":" + form
	data, cachedType, err := s.cache.Get(r.Context(), cacheKey)
	if err != nil {
		data, err = s.storage.FetchArtifact(r.Context(), objectKey)
		if err != nil {
			s.logger.Error("failed to fetch artifact", zap.String("key", objectKey), zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "failed to fetch artifact")
			return
		}
		if err := s.cache.Put(r.Context(), cacheKey, contentType, data); err != nil {
			s.logger.Warn("failed to cache artifact", zap.Error(err))
		}
	} else if cachedType != "" {
		contentType = cachedType
	}

	s.writeBinary(w, data, contentType, fmt.Sprintf("%s_slides.%s", artifactFileBase(run.VideoKey), formExtension(form)))
}

type downloadSlidesRequest struct {
	Slides   []entity.Slide `json:"slides"`
	Format   string         `json:"format"`
	BaseName string         `json:"base_name"`
	Settings *settingsPatch `json:"settings,omitempty"`
}

// handleDownloadSlides builds an artifact directly from a caller-supplied
// slide list, mirroring the synchronous client-detection path.
func (s *Server) handleDownloadSlides(w http.ResponseWriter, r *http.Request) {
	var req downloadSlidesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Slides) == 0 {
		s.writeError(w, http.StatusBadRequest, "slides are required")
		return
	}
	if req.Format != "archive" && req.Format != "document" {
		s.writeError(w, http.StatusBadRequest, `format must be "archive" or "document"`)
		return
	}
	if req.BaseName == "" {
		req.BaseName = "slides"
	}

	// The archive summary reports the settings the slides were detected
	// under, which are not necessarily the server defaults.
	settings := req.Settings.applyTo(s.defaults)
	if err := settings.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var data []byte
	var contentType string
	var err error
	switch req.Format {
	case "archive":
		data, err = encode.Archive(r.Context(), req.Slides, req.BaseName, settings)
		contentType = "application/zip"
	case "document":
		data, _, err = encode.Document(req.Slides)
		contentType = "application/pdf"
	}
	if err != nil {
		s.logger.Error("failed to encode slides", zap.String("format", req.Format), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to encode slides")
		return
	}

	s.writeBinary(w, data, contentType, fmt.Sprintf("%s_slides.%s", req.BaseName, formExtension(req.Format)))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeBinary(w http.ResponseWriter, data []byte, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("failed to write binary response", zap.Error(err))
	}
}

func formExtension(form string) string {
	if form == "document" {
		return "pdf"
	}
	return "zip"
}

func artifactFileBase(videoKey string) string {
	base := strings.TrimSuffix(path.Base(videoKey), path.Ext(videoKey))
	if base == "" || base == "." || base == "/" {
		return "slides"
	}
	return base
}
