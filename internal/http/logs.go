package http

import (
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/driftworks/syncbridge/internal/config"
	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type logsHandler struct {
	encoder encoder
	cfg     *config.AppConfig
}

func newLogsHandler(cfg *config.AppConfig) *logsHandler {
	return &logsHandler{
		encoder: encoder{},
		cfg:     cfg,
	}
}

func (h logsHandler) Routes(r chi.Router) {
	r.Get("/files", h.files)
	r.Get("/files/{logFile}", h.downloadFile)
}

type LogfilesResponse struct {
	Files []LogFile `json:"files"`
	Count int       `json:"count"`
}

type LogFile struct {
	Name      string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	Size      string    `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (h logsHandler) files(w http.ResponseWriter, r *http.Request) {
	response := LogfilesResponse{
		Files: []LogFile{},
		Count: 0,
	}

	logsDir := h.cfg.Config.Logging.Path
	if logsDir == "" {
		render.JSON(w, r, response)
		return
	}

	if _, err := os.Stat(logsDir); err != nil {
		render.JSON(w, r, response)
		return
	}

	walk := func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(d.Name()) != ".log" {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		response.Files = append(response.Files, LogFile{
			Name:      d.Name(),
			SizeBytes: info.Size(),
			Size:      humanize.IBytes(uint64(info.Size())),
			UpdatedAt: info.ModTime(),
		})
		return nil
	}

	if err := filepath.WalkDir(logsDir, walk); err != nil {
		h.encoder.Error(w, err)
		return
	}

	response.Count = len(response.Files)

	render.JSON(w, r, response)
}

var validLogFileName = regexp.MustCompile(`^[a-zA-Z0-9_.-]+\.log$`)

// sensitive query values leak into request logs, scrub them before export
var sensitiveLogPattern = regexp.MustCompile(`(apikey|passkey)=\S+`)

// SanitizeLogFile copies the log at filePath into a temp file with
// credential values redacted and returns the temp file path. The caller
// removes the temp file when done.
func SanitizeLogFile(filePath string) (string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}

	sanitized := sensitiveLogPattern.ReplaceAll(content, []byte("${1}=REDACTED"))

	tmp, err := os.CreateTemp("", "sanitized-*.log")
	if err != nil {
		return "", err
	}

	if _, err := tmp.Write(sanitized); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	return tmp.Name(), nil
}

func (h logsHandler) downloadFile(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Config.Logging.Path == "" {
		h.encoder.StatusNotFound(r.Context(), w)
		return
	}

	logFile := chi.URLParam(r, "logFile")
	if !validLogFileName.MatchString(logFile) {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}

	sanitizedPath, err := SanitizeLogFile(filepath.Join(h.cfg.Config.Logging.Path, logFile))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer os.Remove(sanitizedPath)

	f, err := os.Open(sanitizedPath)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, logFile))

	if _, err := io.Copy(w, f); err != nil {
		// headers are already written, nothing left to signal
		return
	}
}
