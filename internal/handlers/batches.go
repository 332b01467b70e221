package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"media-picker/internal/imageproc"
	"media-picker/internal/logging"
	"media-picker/internal/mediatypes"
	"media-picker/internal/picker"
	"media-picker/internal/pipeline"
	"media-picker/internal/streaming"
)

// batchRequest is the body of POST /api/batches. Options and Location fall
// back to the server defaults when omitted.
type batchRequest struct {
	References    []string           `json:"references"`
	Kind          string             `json:"kind,omitempty"`
	Location      string             `json:"location,omitempty"`
	DirectoryType string             `json:"directoryType,omitempty"`
	Variant       string             `json:"variant,omitempty"`
	Options       *imageproc.Options `json:"options,omitempty"`
}

func (h *Handlers) pipelineRequest(req batchRequest) pipeline.Request {
	out := pipeline.Request{
		References:    req.References,
		Kind:          req.Kind,
		Location:      req.Location,
		DirectoryType: req.DirectoryType,
		Variant:       req.Variant,
		Options:       h.defaults.Options,
	}
	if out.Location == "" {
		out.Location = string(h.defaults.Location)
	}
	if req.Options != nil {
		out.Options = *req.Options
	}
	return out
}

// SubmitBatch queues a batch and answers 202 with its id. With ?wait=true the
// handler blocks until the batch completes and returns its view.
func (h *Handlers) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	b, err := h.runner.Submit(h.pipelineRequest(req))
	switch {
	case errors.Is(err, pipeline.ErrShuttingDown):
		writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
		return
	case err != nil:
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		if err := b.Wait(r.Context()); err != nil {
			logging.Warn("client stopped waiting for batch %s: %v", b.ID, err)
			return
		}
		writeJSONStatus(w, http.StatusOK, b.View())
		return
	}

	w.Header().Set("Location", "/api/batches/"+b.ID)
	writeJSONStatus(w, http.StatusAccepted, map[string]string{
		"id":     b.ID,
		"status": string(b.Status()),
	})
}

// GetBatch returns the current view of one batch.
func (h *Handlers) GetBatch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	b, ok := h.runner.Get(id)
	if !ok {
		writeJSONError(w, "batch not found", http.StatusNotFound)
		return
	}
	writeJSONStatus(w, http.StatusOK, b.View())
}

// ListBatches returns the retained batches, newest first.
func (h *Handlers) ListBatches(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatus(w, http.StatusOK, h.runner.List())
}

// GetItemContent streams the materialized file of one succeeded item, or its
// small thumbnail with ?thumbnail=true.
func (h *Handlers) GetItemContent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	b, ok := h.runner.Get(vars["id"])
	if !ok {
		writeJSONError(w, "batch not found", http.StatusNotFound)
		return
	}

	view := b.View()
	index, err := strconv.Atoi(vars["index"])
	if err != nil || index < 0 || index >= view.Total {
		writeJSONError(w, "item not found", http.StatusNotFound)
		return
	}
	if index >= len(view.Items) {
		writeJSONError(w, "item not processed yet", http.StatusConflict)
		return
	}

	item := view.Items[index]
	if item.Outcome != picker.OutcomeSucceeded {
		writeJSONError(w, "item did not succeed", http.StatusConflict)
		return
	}

	path, mime := item.ResolvedPath, item.MimeType
	if thumb, _ := strconv.ParseBool(r.URL.Query().Get("thumbnail")); thumb {
		if item.ThumbnailPath == "" {
			writeJSONError(w, "item has no thumbnail", http.StatusNotFound)
			return
		}
		path = item.ThumbnailPath
		mime = mediatypes.GuessFromPath(path, mediatypes.KindImage)
	}
	if !mediatypes.IsConcrete(mime) {
		mime = ""
	}

	err = streaming.ServeFile(w, r, path, mime, h.streamConfig)
	switch {
	case err == nil, errors.Is(err, streaming.ErrClientGone):
	case errors.Is(err, streaming.ErrWriteTimeout):
		logging.Warn("Slow client terminated while streaming %s", path)
	default:
		logging.Error("Failed to stream %s: %v", path, err)
	}
}
