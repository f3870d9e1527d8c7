package ingest

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Notifier receives the path of a fully received file
type Notifier interface {
	Push(path string)
}

// Handler accepts "file received" notifications over HTTP and forwards
// them to the work queue. Repeated notifications for the same path are
// all forwarded.
type Handler struct {
	root     string
	notifier Notifier
	logger   *zap.Logger
}

type notifyRequest struct {
	Path string `json:"path"`
}

// NewHandler creates a handler accepting paths under root
func NewHandler(root string, notifier Notifier, logger *zap.Logger) *Handler {
	return &Handler{
		root:     filepath.Clean(root),
		notifier: notifier,
		logger:   logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path, err := requestPath(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Validate(path); err != nil {
		h.logger.Warn("Rejected notification", zap.String("path", path), zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.logger.Info("File received", zap.String("path", path))
	h.notifier.Push(path)
	w.WriteHeader(http.StatusAccepted)
}

// Validate checks that path is an absolute path inside the root
func (h *Handler) Validate(path string) error {
	if path == "" {
		return fmt.Errorf("path is required")
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("path must be absolute")
	}
	if filepath.Clean(path) != path {
		return fmt.Errorf("path must be clean")
	}

	rel, err := filepath.Rel(h.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path is outside %s", h.root)
	}
	return nil
}

func requestPath(w http.ResponseWriter, r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req notifyRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
			return "", fmt.Errorf("invalid request body: %w", err)
		}
		return req.Path, nil
	}
	return r.FormValue("path"), nil
}
