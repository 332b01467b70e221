package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"media-picker/internal/logging"
	"media-picker/internal/provider"
)

// Largest page ListMedia will return.
const maxMediaLimit = 1000

// TriggerScan starts a provider index run. By default the run happens in the
// background and the handler answers 202; ?wait=true returns the result.
func (h *Handlers) TriggerScan(w http.ResponseWriter, r *http.Request) {
	if h.indexer == nil {
		writeJSONError(w, "indexing is disabled", http.StatusServiceUnavailable)
		return
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		result, err := h.indexer.Index(r.Context())
		switch {
		case errors.Is(err, provider.ErrIndexRunning):
			writeJSONError(w, err.Error(), http.StatusConflict)
		case err != nil:
			logging.Error("Requested index failed: %v", err)
			writeJSONError(w, err.Error(), http.StatusInternalServerError)
		default:
			writeJSONStatus(w, http.StatusOK, result)
		}
		return
	}

	if err := h.indexer.Scan(); err != nil {
		writeJSONError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// ListMedia returns registered media, optionally filtered by ?collection=.
func (h *Handlers) ListMedia(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	collection := strings.ToLower(strings.TrimSpace(q.Get("collection")))
	if collection != "" && !slices.Contains(provider.Collections, collection) {
		writeJSONError(w, "unknown collection", http.StatusBadRequest)
		return
	}

	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeJSONError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxMediaLimit)
	}

	media, err := h.store.ListMedia(r.Context(), collection, limit)
	if err != nil {
		logging.Error("Failed to list media: %v", err)
		writeJSONError(w, "failed to list media", http.StatusInternalServerError)
		return
	}
	if media == nil {
		media = []provider.Media{}
	}
	writeJSONStatus(w, http.StatusOK, media)
}

type grantRequest struct {
	URI        string `json:"uri"`
	MediaID    int64  `json:"mediaId,omitempty"`
	Path       string `json:"path,omitempty"`
	ExposeData bool   `json:"exposeData"`
}

// AddGrant maps a foreign content URI onto a registered file. The file is
// named by mediaId or by path; a path that is not registered yet is added.
func (h *Handlers) AddGrant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if !strings.HasPrefix(req.URI, "content://") {
		writeJSONError(w, "uri must be a content URI", http.StatusBadRequest)
		return
	}
	if (req.MediaID == 0) == (req.Path == "") {
		writeJSONError(w, "exactly one of mediaId or path is required", http.StatusBadRequest)
		return
	}

	if req.Path != "" && h.defaults.AllowPath != nil && !h.defaults.AllowPath(req.Path) {
		writeJSONError(w, "path is outside the readable directories", http.StatusForbidden)
		return
	}

	ctx := r.Context()
	var m provider.Media
	var err error
	if req.Path != "" {
		m, err = h.store.Register(ctx, req.Path)
	} else {
		m, err = h.store.GetMedia(ctx, "", req.MediaID)
	}
	switch {
	case errors.Is(err, provider.ErrMediaNotFound), errors.Is(err, fs.ErrNotExist):
		writeJSONError(w, "media not found", http.StatusNotFound)
		return
	case err != nil:
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.store.PutGrant(ctx, req.URI, m.ID, req.ExposeData); err != nil {
		logging.Error("Failed to store grant: %v", err)
		writeJSONError(w, "failed to store grant", http.StatusInternalServerError)
		return
	}
	logging.Info("Granted %s -> %s", req.URI, m.URI())
	writeJSONStatus(w, http.StatusCreated, provider.Grant{
		URI:        req.URI,
		MediaID:    m.ID,
		ExposeData: req.ExposeData,
	})
}

// RevokeGrant removes the grant named by ?uri=.
func (h *Handlers) RevokeGrant(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		writeJSONError(w, "uri is required", http.StatusBadRequest)
		return
	}
	removed, err := h.store.RevokeGrant(r.Context(), uri)
	if err != nil {
		logging.Error("Failed to revoke grant: %v", err)
		writeJSONError(w, "failed to revoke grant", http.StatusInternalServerError)
		return
	}
	if !removed {
		writeJSONError(w, "grant not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListGrants returns every grant.
func (h *Handlers) ListGrants(w http.ResponseWriter, r *http.Request) {
	grants, err := h.store.Grants(r.Context())
	if err != nil {
		logging.Error("Failed to list grants: %v", err)
		writeJSONError(w, "failed to list grants", http.StatusInternalServerError)
		return
	}
	if grants == nil {
		grants = []provider.Grant{}
	}
	writeJSONStatus(w, http.StatusOK, grants)
}
