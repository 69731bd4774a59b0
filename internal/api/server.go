// Package api serves the checklist tree, items and attachments over HTTP/JSON.
// It is the server counterpart of remote.Client.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"checklist-cli/internal/blob"
	"checklist-cli/internal/logging"
	"checklist-cli/internal/metrics"
	"checklist-cli/internal/model"
	"checklist-cli/internal/mutate"
	"checklist-cli/internal/store"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// multipartOverhead is allowed on top of the attachment limit for boundaries
// and part headers.
const multipartOverhead = 1 << 20

const presignExpiry = 15 * time.Minute

var errBadRequest = errors.New("bad request")

type Server struct {
	store *store.Store
	log   *zap.Logger
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.log = logging.OrNop(l) } }

func New(st *store.Store, opts ...Option) (*Server, error) {
	if st == nil {
		return nil, errors.New("api: nil store")
	}
	s := &Server{store: st, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "no such route")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.Use(s.observe)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/tree", s.handleTree).Methods(http.MethodGet)
	api.HandleFunc("/tree/reorder", s.handleReorder).Methods(http.MethodPost)
	api.HandleFunc("/{kind:assemblies|parts}/{id}", s.handleRename).Methods(http.MethodPatch)
	api.HandleFunc("/{kind:assemblies|parts}/{id}", s.handleDelete).Methods(http.MethodDelete)
	api.HandleFunc("/parts/{id}/items", s.handleItems).Methods(http.MethodGet)
	api.HandleFunc("/items/{id}", s.handleItem).Methods(http.MethodGet)
	api.HandleFunc("/items/{id}/attachments", s.handleUpload).Methods(http.MethodPost)
	api.HandleFunc("/attachments/{id}", s.handleAttachment).Methods(http.MethodGet)
	api.HandleFunc("/attachments/{id}/content", s.handleAttachmentContent).Methods(http.MethodGet)
	api.HandleFunc("/attachments/{id}", s.handleAttachmentDelete).Methods(http.MethodDelete)
	return r
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// observe records request metrics keyed by the matched route template.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		elapsed := time.Since(start)
		metrics.HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(sw.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(elapsed.Seconds())
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", sw.status),
			zap.Duration("elapsed", elapsed))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, mutate.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrTooLarge), errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest),
		errors.Is(err, mutate.ErrInvalidIndex),
		errors.Is(err, mutate.ErrInvalidName),
		errors.Is(err, store.ErrInvalidItem),
		errors.Is(err, store.ErrEmptyUpload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error body. Internal errors are logged and
// reported without detail.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid json: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.Tree(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	var intent model.ReorderIntent
	if err := decodeJSON(r, &intent); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.Reorder(r.Context(), intent); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathKind(r *http.Request) (model.Kind, string, error) {
	vars := mux.Vars(r)
	kind, err := model.ParseKind(vars["kind"])
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return kind, vars["id"], nil
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	kind, id, err := pathKind(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.Rename(r.Context(), kind, id, body.Name); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	kind, id, err := pathKind(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.Delete(r.Context(), kind, id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.Items(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	it, err := s.store.Item(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// handleUpload streams the multipart "file" field into the store without
// buffering the whole request.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]
	r.Body = http.MaxBytesReader(w, r.Body, s.store.MaxAttachmentBytes()+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: expected multipart/form-data: %v", errBadRequest, err))
		return
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			s.fail(w, r, fmt.Errorf("%w: missing file field", errBadRequest))
			return
		}
		if err != nil {
			s.fail(w, r, uploadErr(err))
			return
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}
		a, err := s.store.AddAttachment(r.Context(), itemID, part.FileName(), part.Header.Get("Content-Type"), part)
		_ = part.Close()
		if err != nil {
			s.fail(w, r, uploadErr(err))
			return
		}
		writeJSON(w, http.StatusCreated, a)
		return
	}
}

func uploadErr(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Errorf("%w: request body over %d bytes", store.ErrTooLarge, maxErr.Limit)
	}
	if errors.Is(err, multipart.ErrMessageTooLarge) {
		return fmt.Errorf("%w: %v", store.ErrTooLarge, err)
	}
	return err
}

func (s *Server) handleAttachment(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.Attachment(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleAttachmentContent redirects to a presigned URL when the blob backend
// offers one and streams the content otherwise.
func (s *Server) handleAttachmentContent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	u, err := s.store.PresignAttachment(r.Context(), id, presignExpiry)
	switch {
	case err == nil:
		http.Redirect(w, r, u, http.StatusFound)
		return
	case !errors.Is(err, blob.ErrUnsupported):
		s.fail(w, r, err)
		return
	}
	a, rc, err := s.store.OpenAttachment(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", a.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(a.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", strings.ReplaceAll(a.Filename, `"`, "")))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.log.Warn("attachment stream interrupted", zap.String("id", id), zap.Error(err))
	}
}

func (s *Server) handleAttachmentDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteAttachment(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
