package gateway

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/memflow/memflow-registry/internal/apperror"
	"github.com/memflow/memflow-registry/internal/catalog"
	"github.com/memflow/memflow-registry/internal/descriptor"
	"github.com/memflow/memflow-registry/internal/inspector"
	"github.com/memflow/memflow-registry/internal/objectstore"
)

// maxUploadBytes is the write-path request body cap, per spec.md §4.6.
const maxUploadBytes = 20 << 20

// minSniffBytes is how many bytes of the multipart file part must be
// buffered before IsBinary is consulted, per spec.md §4.6.
const minSniffBytes = 5

// Gateway is stateless apart from a reference to the Store and an optional
// shared bearer token; every handler method is safe for concurrent use.
type Gateway struct {
	store       *objectstore.Store
	bearerToken string
}

// New builds a Gateway. An empty bearerToken disables auth on write paths
// entirely, matching MEMFLOW_BEARER_TOKEN's documented default.
func New(store *objectstore.Store, bearerToken string) *Gateway {
	return &Gateway{store: store, bearerToken: bearerToken}
}

// Handler builds the registry's full route table.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /plugins", g.handleListPlugins)
	mux.HandleFunc("GET /plugins/{name}", g.handlePluginVariants)
	mux.HandleFunc("GET /files/{digest}", g.handleDownload)
	mux.HandleFunc("GET /files/{digest}/metadata", g.handleMetadata)
	mux.HandleFunc("POST /files", g.requireBearer(g.handleUpload))
	mux.HandleFunc("DELETE /files/{digest}", g.requireBearer(g.handleDelete))
	mux.HandleFunc("GET /health", g.handleHealth)
	return mux
}

// requireBearer wraps a write-path handler with bearer-token enforcement.
// When g.bearerToken is empty, auth is disabled entirely.
func (g *Gateway) requireBearer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.bearerToken == "" {
			next(w, r)
			return
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(g.bearerToken)) != 1 {
			textError(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}
		next(w, r)
	}
}

func (g *Gateway) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{"plugins": g.store.Catalog().Plugins()})
}

func (g *Gateway) handlePluginVariants(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	params, err := parseQueryParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	variants := g.store.Catalog().PluginVariants(name, params)
	jsonResponse(w, http.StatusOK, map[string]any{"plugins": variants, "skip": params.Skip})
}

func parseQueryParams(r *http.Request) (catalog.QueryParams, error) {
	q := r.URL.Query()
	var params catalog.QueryParams

	if v := q.Get("version"); v != "" {
		params.Version = v
		params.HasVersion = true
	}
	if v := q.Get("memflow_plugin_version"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return params, apperror.Parse("invalid memflow_plugin_version %q", v)
		}
		params.MemflowPluginVersion = int32(n)
		params.HasMemflowPluginVersion = true
	}
	if v := q.Get("file_type"); v != "" {
		ft, ok := descriptor.ParseFileType(v)
		if !ok {
			return params, apperror.Parse("invalid file_type %q", v)
		}
		params.FileType = ft
		params.HasFileType = true
	}
	if v := q.Get("architecture"); v != "" {
		arch, ok := descriptor.ParseArchitecture(v)
		if !ok {
			return params, apperror.Parse("invalid architecture %q", v)
		}
		params.Architecture = arch
		params.HasArchitecture = true
	}
	if v := q.Get("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return params, apperror.Parse("invalid skip %q", v)
		}
		params.Skip = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return params, apperror.Parse("invalid limit %q", v)
		}
		params.Limit = n
		params.HasLimit = true
	}
	return params, nil
}

func (g *Gateway) handleDownload(w http.ResponseWriter, r *http.Request) {
	digest := r.PathValue("digest")
	stream, size, err := g.store.Download(digest)
	if err != nil {
		writeError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	io.Copy(w, stream)
}

func (g *Gateway) handleMetadata(w http.ResponseWriter, r *http.Request) {
	digest := r.PathValue("digest")
	meta, err := g.store.Metadata(digest)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, meta)
}

// handleUpload streams the multipart "file" part, gating on IsBinary as soon
// as minSniffBytes have been buffered so unrecognized uploads are rejected
// before the whole body is read, per spec.md §4.6.
func (g *Gateway) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	reader, err := r.MultipartReader()
	if err != nil {
		textError(w, http.StatusBadRequest, "expected multipart/form-data body")
		return
	}

	var fileBytes []byte
	var signature string

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			textError(w, http.StatusBadRequest, "malformed multipart body")
			return
		}

		switch part.FormName() {
		case "file":
			fileBytes, err = readAndSniff(part)
			if err != nil {
				writeError(w, err)
				return
			}
		case "signature":
			raw, err := io.ReadAll(part)
			if err != nil {
				textError(w, http.StatusBadRequest, "could not read signature field")
				return
			}
			signature = strings.TrimSpace(string(raw))
		}
		part.Close()
	}

	if fileBytes == nil {
		textError(w, http.StatusBadRequest, "missing file field")
		return
	}

	result, err := g.store.Upload(fileBytes, signature)
	if err != nil {
		writeError(w, err)
		return
	}

	switch result {
	case objectstore.Added:
		jsonResponse(w, http.StatusOK, map[string]string{"status": "Added"})
	case objectstore.AlreadyExists:
		jsonResponse(w, http.StatusOK, map[string]string{"status": "AlreadyExists"})
	}
}

// readAndSniff buffers the file part into memory, rejecting it as soon as
// minSniffBytes are available and IsBinary reports no recognized format.
func readAndSniff(r io.Reader) ([]byte, error) {
	buf := make([]byte, 0, 64*1024)
	chunk := make([]byte, 32*1024)
	sniffed := false

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if !sniffed && len(buf) >= minSniffBytes {
				ok, sniffErr := inspector.IsBinary(buf[:minSniffBytes])
				if sniffErr != nil {
					return nil, sniffErr
				}
				if !ok {
					return nil, apperror.Parse("uploaded file is not a recognized binary format")
				}
				sniffed = true
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperror.IO("read uploaded file", err)
		}
	}
	if !sniffed {
		return nil, apperror.Parse("uploaded file is too small to be a valid binary")
	}
	return buf, nil
}

func (g *Gateway) handleDelete(w http.ResponseWriter, r *http.Request) {
	digest := r.PathValue("digest")
	if err := g.store.Delete(digest); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := g.store.Health(); err != nil {
		jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"Error": err.Error()})
		return
	}
	textError(w, http.StatusOK, "Ok")
}

// writeError maps an apperror.Kind to its HTTP status, per spec.md §7.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		textError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Kind {
	case apperror.KindParse, apperror.KindSignature, apperror.KindNotImplemented:
		status = http.StatusBadRequest
	case apperror.KindNotFound:
		status = http.StatusNotFound
	case apperror.KindIO:
		status = http.StatusInternalServerError
	}
	textError(w, status, appErr.Error())
}
