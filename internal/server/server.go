package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"speechscope/internal/logger"
	"speechscope/internal/report"
	"speechscope/internal/segment"
)

// PipelineRunner executes the staged inference pipeline over one audio file
type PipelineRunner interface {
	Run(ctx context.Context, audioPath string) (*segment.PipelineResult, error)
}

// ReportGenerator produces the coaching report; it never fails, degrading to
// a stub report internally
type ReportGenerator interface {
	Generate(ctx context.Context, transcript string, samples []report.EmotionSample) *report.Report
}

// AudioConverter normalizes and trims uploaded audio into pipeline input
type AudioConverter interface {
	ConvertAndTrim(ctx context.Context, inputPath, outputPath string, start, end float64) error
}

// Server is the HTTP boundary of the analysis service
type Server struct {
	pipeline       PipelineRunner
	reports        ReportGenerator
	converter      AudioConverter
	tempDir        string
	maxUploadBytes int64
	logger         *zap.Logger
	httpServer     *http.Server
}

// NewServer creates the HTTP server for the given collaborators
func NewServer(addr string, pipeline PipelineRunner, reports ReportGenerator, converter AudioConverter, tempDir string, maxUploadMB int, log *zap.Logger) *Server {
	s := &Server{
		pipeline:       pipeline,
		reports:        reports,
		converter:      converter,
		tempDir:        tempDir,
		maxUploadBytes: int64(maxUploadMB) << 20,
		logger:         logger.OrNop(log),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/analyze", s.handleAnalyze)
	mux.HandleFunc("/healthz", s.handleHealthz)

	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

// ListenAndServe blocks serving requests until Shutdown or a listener error
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// emotionPoint is one segment's emotion placed at its temporal midpoint
type emotionPoint struct {
	Time    float64       `json:"time"`
	Emotion segment.Label `json:"emotion"`
	Score   float64       `json:"score"`
}

// analyzeResponse is the full analysis payload returned to the client
type analyzeResponse struct {
	Transcript  string         `json:"transcript"`
	EmotionData []emotionPoint `json:"emotionData"`
	Report      *report.Report `json:"report"`
}

// errorResponse carries the single human-readable failure message
type errorResponse struct {
	Error string `json:"error"`
}

// handleHealthz reports process liveness
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleAnalyze accepts an audio upload plus an optional trim range, runs the
// pipeline and returns transcript, emotion data and the generated report.
// Temp files created for the request are removed before responding, on every
// path.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "only POST is supported")
		return
	}

	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing audio file upload")
		return
	}
	defer file.Close()

	start, err := parseTimeField(r.FormValue("start"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid start value: %v", err))
		return
	}
	end, err := parseTimeField(r.FormValue("end"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid end value: %v", err))
		return
	}

	// Uploaded names may carry anything; a uuid keeps the temp paths safe
	ext := filepath.Ext(header.Filename)
	if ext == "" {
		ext = ".tmp"
	}
	id := uuid.NewString()
	originalPath := filepath.Join(s.tempDir, id+"_orig"+ext)
	processedPath := filepath.Join(s.tempDir, id+"_proc.wav")
	defer s.removeTempFiles(originalPath, processedPath)

	if err := saveUpload(file, originalPath); err != nil {
		s.logger.Error("failed to persist upload", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to store uploaded file")
		return
	}

	s.logger.Info("analysis request accepted",
		zap.String("filename", header.Filename),
		zap.Float64("start", start),
		zap.Float64("end", end))

	if err := s.converter.ConvertAndTrim(r.Context(), originalPath, processedPath, start, end); err != nil {
		s.logger.Error("audio conversion failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("audio conversion failed: %v", err))
		return
	}

	result, err := s.pipeline.Run(r.Context(), processedPath)
	if err != nil {
		s.logger.Error("pipeline failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("analysis failed: %v", err))
		return
	}

	points := make([]emotionPoint, 0, len(result.Segments))
	samples := make([]report.EmotionSample, 0, len(result.Segments))
	for _, seg := range result.Segments {
		points = append(points, emotionPoint{
			Time:    (seg.Start + seg.End) / 2,
			Emotion: seg.Emotion,
			Score:   seg.Score,
		})
		samples = append(samples, report.EmotionSample{Emotion: seg.Emotion, Score: seg.Score})
	}

	rep := s.reports.Generate(r.Context(), result.Transcript, samples)

	s.writeJSON(w, http.StatusOK, analyzeResponse{
		Transcript:  result.Transcript,
		EmotionData: points,
		Report:      rep,
	})
}

// removeTempFiles deletes request-scoped files, logging but not failing on error
func (s *Server) removeTempFiles(paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove temp file", zap.String("path", p), zap.Error(err))
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

// setCORSHeaders mirrors the permissive policy the browser frontend expects
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// parseTimeField parses an optional seconds form value, empty meaning zero
func parseTimeField(v string) (float64, error) {
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return f, nil
}

// saveUpload streams the multipart file to disk
func saveUpload(src io.Reader, dst string) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}
