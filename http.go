package assetorigin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	cachepolicy "github.com/asset-origin/asset-origin/pkg/cache-policy"
	"github.com/asset-origin/asset-origin/registry"
	"github.com/asset-origin/asset-origin/token"
)

func (o *Origin) routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/assets", o.handleUpload)
	r.Get("/assets/private/{token}", o.handlePrivateGet)
	r.Get("/assets/{assetID}", o.handleGet)
	r.Head("/assets/{assetID}", o.handleHead)
	r.Put("/assets/{assetID}", o.handleReplace)
	r.Delete("/assets/{assetID}", o.handleDelete)
	r.Get("/assets/{assetID}/info", o.handleInfo)
	r.Post("/assets/{assetID}/publish", o.handlePublish)
	r.Get("/assets/{assetID}/versions/{number}", o.handleVersionGet)
	r.Post("/assets/{assetID}/tokens", o.handleIssueToken)
	r.Delete("/tokens/{token}", o.handleRevokeToken)
	return r
}

type assetResponse struct {
	ID             string    `json:"id"`
	FileName       string    `json:"fileName,omitempty"`
	MimeType       string    `json:"mimeType"`
	SizeBytes      int64     `json:"sizeBytes"`
	Visibility     string    `json:"visibility"`
	Mutability     string    `json:"mutability"`
	Fingerprint    string    `json:"fingerprint"`
	VersionCounter int64     `json:"versionCounter"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func toAssetResponse(a registry.Asset) assetResponse {
	return assetResponse{
		ID:             a.ID,
		FileName:       a.FileName,
		MimeType:       a.MimeType,
		SizeBytes:      a.SizeBytes,
		Visibility:     string(a.Visibility),
		Mutability:     string(a.Mutability),
		Fingerprint:    a.CurrentFingerprint.String(),
		VersionCounter: a.VersionCounter,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

type publishResponse struct {
	AssetID       string    `json:"assetId"`
	VersionNumber int64     `json:"versionNumber"`
	Fingerprint   string    `json:"fingerprint"`
	URL           string    `json:"url"`
	CreatedAt     time.Time `json:"createdAt"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	AssetID   string    `json:"assetId"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (o *Origin) handleUpload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, o.maxUploadBytes))
	if err != nil {
		o.writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}

	visibility, err := cachepolicy.ParseVisibility(r.URL.Query().Get("visibility"))
	if err != nil {
		o.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mutability, err := cachepolicy.ParseMutability(r.URL.Query().Get("mutability"))
	if err != nil {
		o.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := o.registry.Create(r.Context(), body, registry.CreateOptions{
		FileName:   r.URL.Query().Get("filename"),
		MimeType:   r.Header.Get("Content-Type"),
		Visibility: visibility,
		Mutability: mutability,
	})
	if err != nil {
		o.writeDomainError(w, err)
		return
	}
	o.writeJSON(w, http.StatusCreated, toAssetResponse(a))
}

func (o *Origin) handleGet(w http.ResponseWriter, r *http.Request) {
	ev, err := o.Evaluate(r.Context(), chi.URLParam(r, "assetID"), r.Header.Get("If-None-Match"))
	if err != nil {
		o.writeDomainError(w, err)
		return
	}
	o.writeEvaluation(w, r, ev, true)
}

func (o *Origin) handleHead(w http.ResponseWriter, r *http.Request) {
	ev, err := o.Evaluate(r.Context(), chi.URLParam(r, "assetID"), r.Header.Get("If-None-Match"))
	if err != nil {
		o.writeDomainError(w, err)
		return
	}
	o.writeEvaluation(w, r, ev, false)
}

func (o *Origin) handlePrivateGet(w http.ResponseWriter, r *http.Request) {
	ev, err := o.EvaluatePrivate(r.Context(), chi.URLParam(r, "token"), r.Header.Get("If-None-Match"))
	if err != nil {
		o.writeDomainError(w, err)
		return
	}
	o.writeEvaluation(w, r, ev, true)
}

func (o *Origin) handleVersionGet(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.ParseInt(chi.URLParam(r, "number"), 10, 64)
	if err != nil || number < 1 {
		o.writeError(w, http.StatusNotFound, "not found")
		return
	}
	ev, err := o.EvaluateVersion(r.Context(), chi.URLParam(r, "assetID"), number, r.Header.Get("If-None-Match"))
	if err != nil {
		o.writeDomainError(w, err)
		return
	}
	o.writeEvaluation(w, r, ev, true)
}

func (o *Origin) handleReplace(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, o.maxUploadBytes))
	if err != nil {
		o.writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}
	a, err := o.registry.ReplaceContent(r.Context(), chi.URLParam(r, "assetID"), body)
	if err != nil {
		o.writeDomainError(w, err)
		return
	}
	o.writeJSON(w, http.StatusOK, toAssetResponse(a))
}

func (o *Origin) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := o.registry.Delete(r.Context(), chi.URLParam(r, "assetID")); err != nil {
		o.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (o *Origin) handleInfo(w http.ResponseWriter, r *http.Request) {
	a, err := o.registry.Get(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		o.writeDomainError(w, err)
		return
	}
	o.writeJSON(w, http.StatusOK, toAssetResponse(a))
}

func (o *Origin) handlePublish(w http.ResponseWriter, r *http.Request) {
	v, err := o.Publish(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		o.writeDomainError(w, err)
		return
	}
	o.writeJSON(w, http.StatusCreated, publishResponse{
		AssetID:       v.AssetID,
		VersionNumber: v.VersionNumber,
		Fingerprint:   v.Fingerprint.String(),
		URL:           o.VersionURL(v),
		CreatedAt:     v.CreatedAt,
	})
}

func (o *Origin) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	ttl := o.defaultTokenTTL
	if s := r.URL.Query().Get("ttl"); s != "" {
		seconds, err := strconv.ParseInt(s, 10, 64)
		if err != nil || seconds < 0 {
			o.writeError(w, http.StatusBadRequest, "invalid ttl")
			return
		}
		ttl = time.Duration(seconds) * time.Second
	}
	t, err := o.tokens.Issue(r.Context(), chi.URLParam(r, "assetID"), ttl)
	if err != nil {
		o.writeDomainError(w, err)
		return
	}
	o.writeJSON(w, http.StatusCreated, tokenResponse{
		Token:     t.Token,
		AssetID:   t.AssetID,
		IssuedAt:  t.IssuedAt,
		ExpiresAt: t.ExpiresAt,
	})
}

func (o *Origin) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	if err := o.tokens.Revoke(r.Context(), chi.URLParam(r, "token")); err != nil {
		o.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeEvaluation renders an evaluation as an HTTP response. Validator and
// policy headers are attached on every outcome, including 304s, so caches
// keep knowing the policy.
func (o *Origin) writeEvaluation(w http.ResponseWriter, r *http.Request, ev Evaluation, withBody bool) {
	h := w.Header()
	h.Set("ETag", ev.Fingerprint.ETag())
	h.Set("Cache-Control", ev.Directives)
	h.Set("Last-Modified", ev.LastModified.UTC().Format(http.TimeFormat))

	if ev.NotModified {
		w.WriteHeader(http.StatusNotModified)
		o.logRead(r, http.StatusNotModified, 0)
		return
	}

	h.Set("Content-Type", ev.MimeType)
	h.Set("Content-Length", strconv.FormatInt(ev.SizeBytes, 10))
	h.Set("X-Content-Type-Options", "nosniff")
	if ev.FileName != "" {
		h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ev.FileName))
	}

	if !withBody {
		ev.Close()
		w.WriteHeader(http.StatusOK)
		o.logRead(r, http.StatusOK, 0)
		return
	}

	defer ev.Close()
	w.WriteHeader(http.StatusOK)
	bytesWritten, err := io.Copy(w, ev.Content)
	if err != nil {
		o.log.Error().Err(err).Msg("Could not write response body to client")
	}
	o.logRead(r, http.StatusOK, bytesWritten)
}

func (o *Origin) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrForbidden) || errors.Is(err, token.ErrInvalid):
		o.writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, ErrNotFound):
		o.writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, ErrAlreadyPublishing):
		o.writeError(w, http.StatusConflict, "publish already in progress")
	case errors.Is(err, ErrConflict):
		o.writeError(w, http.StatusConflict, "concurrent modification, retry later")
	case errors.Is(err, ErrEmptyContent):
		o.writeError(w, http.StatusBadRequest, "content is empty")
	case errors.Is(err, ErrInvalidState):
		o.writeError(w, http.StatusUnprocessableEntity, "operation not allowed for this asset")
	case errors.Is(err, ErrStorageWrite):
		o.log.Error().Err(err).Msg("Storage backend failure")
		o.writeError(w, http.StatusBadGateway, "storage unavailable")
	case errors.Is(err, ErrConsistency):
		o.log.Error().Err(err).Msg("Consistency fault")
		o.writeError(w, http.StatusInternalServerError, "internal inconsistency")
	default:
		o.log.Error().Err(err).Msg("Unhandled error")
		o.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeError sends a JSON error body. Messages are generic on purpose:
// they never include storage keys, database identifiers, or the reason a
// token was rejected.
func (o *Origin) writeError(w http.ResponseWriter, status int, msg string) {
	o.writeJSON(w, status, map[string]string{"error": msg})
}

func (o *Origin) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		o.log.Error().Err(err).Msg("Could not encode response")
	}
}

func (o *Origin) logRead(r *http.Request, status int, bytesWritten int64) {
	revalidated := 0
	if status == http.StatusNotModified {
		revalidated = 1
	}
	o.log.Debug().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Int("status", status).
		Int64("bytes", bytesWritten).
		Int("revalidated", revalidated).
		Msg("Sending response to client")
}
