package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/and161185/cloudbox/internal/convert"
	"github.com/and161185/cloudbox/internal/errs"
	"github.com/and161185/cloudbox/internal/limiter"
	"github.com/and161185/cloudbox/internal/model"
)

// multipart parts above this size spill to temp files
const formMemory = 8 << 20

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.probe != nil {
		if err := s.probe(r.Context()); err != nil {
			s.log.Warn("health probe failed", zap.Error(err))
			writeJSONError(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listNamespace(w http.ResponseWriter, r *http.Request) {
	tok := mux.Vars(r)["token"]
	names, err := s.ns.List(r.Context(), tok)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToListing(tok, names))
}

func (s *Server) putEntry(w http.ResponseWriter, r *http.Request) {
	tok := mux.Vars(r)["token"]
	files, err := s.readFiles(w, r, 1)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	e := files[0]
	if err := s.ns.Put(r.Context(), tok, e.Name, e.Data); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, convert.Stored{Token: tok, Name: e.Name, Size: len(e.Data)})
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	data, err := s.ns.Get(r.Context(), v["token"], v["name"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeAttachment(w, v["name"], data)
}

func (s *Server) createShare(w http.ResponseWriter, r *http.Request) {
	if ok, retry := s.lim.Allow(limiter.HashIP(clientIP(r))); !ok {
		if retry > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
		}
		s.fail(w, r, errs.ErrRateLimited)
		return
	}
	files, err := s.readFiles(w, r, 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sh, err := s.shares.Create(r.Context(), files)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, convert.ToShare(sh, s.opts.PublicURL))
}

func (s *Server) listShare(w http.ResponseWriter, r *http.Request) {
	tok := mux.Vars(r)["token"]
	names, err := s.shares.List(r.Context(), tok)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToListing(tok, names))
}

func (s *Server) getShareEntry(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	data, err := s.shares.Get(r.Context(), v["token"], v["name"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeAttachment(w, v["name"], data)
}

var errTooLarge = errors.New("upload too large")

// readFiles collects the "file" parts of a multipart body. limit > 0 requires
// exactly that many parts.
func (s *Server) readFiles(w http.ResponseWriter, r *http.Request, limit int) ([]model.Entry, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, errTooLarge
		}
		return nil, fmt.Errorf("parse form: %v: %w", err, errs.ErrValidation)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	hdrs := r.MultipartForm.File["file"]
	if len(hdrs) == 0 {
		return nil, fmt.Errorf("missing file part: %w", errs.ErrValidation)
	}
	if limit > 0 && len(hdrs) != limit {
		return nil, fmt.Errorf("expected %d file part(s), got %d: %w", limit, len(hdrs), errs.ErrValidation)
	}
	out := make([]model.Entry, 0, len(hdrs))
	for _, fh := range hdrs {
		data, err := readPart(fh)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Entry{Name: partName(fh), Data: data})
	}
	return out, nil
}

// partName returns the filename as the client sent it. FileHeader.Filename
// is already reduced to its base name, which would hide traversal attempts
// from name validation.
func partName(fh *multipart.FileHeader) string {
	if _, params, err := mime.ParseMediaType(fh.Header.Get("Content-Disposition")); err == nil {
		if name, ok := params["filename"]; ok {
			return name
		}
	}
	return fh.Filename
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeAttachment(w http.ResponseWriter, name string, data []byte) {
	cd := mime.FormatMediaType("attachment", map[string]string{"filename": name})
	if cd == "" {
		cd = "attachment"
	}
	w.Header().Set("Content-Disposition", cd)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, convert.Error{Error: msg})
}
