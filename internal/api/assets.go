package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/constructlink/constructlink/internal/imaging"
	"github.com/constructlink/constructlink/internal/model"
	"github.com/constructlink/constructlink/internal/store"
)

// AssetsHandler handles asset endpoints.
type AssetsHandler struct {
	DB *sql.DB
}

type createAssetRequest struct {
	Tag             string          `json:"tag"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	AcquisitionCost decimal.Decimal `json:"acquisition_cost"`
	ProjectID       int64           `json:"project_id"`
}

type updateAssetRequest struct {
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	AcquisitionCost decimal.Decimal `json:"acquisition_cost"`
	Status          string          `json:"status"`
}

var validAssetStatuses = map[string]bool{
	model.AssetStatusAvailable:   true,
	model.AssetStatusBorrowed:    true,
	model.AssetStatusMaintenance: true,
	model.AssetStatusRetired:     true,
}

// List handles GET /api/assets.
func (h *AssetsHandler) List(w http.ResponseWriter, r *http.Request) {
	var projectID int64
	if v := r.URL.Query().Get("project_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid project_id")
			return
		}
		projectID = id
	}

	status := r.URL.Query().Get("status")
	if status != "" && !validAssetStatuses[status] {
		jsonError(w, http.StatusBadRequest, "unknown status")
		return
	}

	assets, err := store.ListAssets(r.Context(), h.DB, projectID, status)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list assets")
		return
	}
	if assets == nil {
		assets = []model.Asset{}
	}
	jsonResponse(w, http.StatusOK, assets)
}

// Create handles POST /api/assets.
func (h *AssetsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAssetRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Tag == "" || req.Name == "" || req.ProjectID <= 0 {
		jsonError(w, http.StatusBadRequest, "tag, name, and project_id are required")
		return
	}
	if req.AcquisitionCost.IsNegative() {
		jsonError(w, http.StatusBadRequest, "acquisition cost must not be negative")
		return
	}

	asset, err := store.CreateAsset(r.Context(), h.DB, req.Tag, req.Name, req.Description,
		req.AcquisitionCost, req.ProjectID)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "failed to create asset (tag may already exist)")
		return
	}

	slog.Info("asset created", "tag", asset.Tag, "name", asset.Name,
		"by", GetClaims(r.Context()).Username)
	jsonResponse(w, http.StatusCreated, asset)
}

// Get handles GET /api/assets/{id}.
func (h *AssetsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	asset, err := store.GetAsset(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if asset == nil || asset.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "asset not found")
		return
	}
	jsonResponse(w, http.StatusOK, asset)
}

// Update handles PUT /api/assets/{id}.
func (h *AssetsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req updateAssetRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || !validAssetStatuses[req.Status] {
		jsonError(w, http.StatusBadRequest, "name and a valid status are required")
		return
	}
	if req.AcquisitionCost.IsNegative() {
		jsonError(w, http.StatusBadRequest, "acquisition cost must not be negative")
		return
	}

	if err := store.UpdateAsset(r.Context(), h.DB, id, req.Name, req.Description,
		req.AcquisitionCost, req.Status); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to update asset")
		return
	}

	asset, err := store.GetAsset(r.Context(), h.DB, id)
	if err != nil || asset == nil {
		jsonError(w, http.StatusNotFound, "asset not found")
		return
	}
	jsonResponse(w, http.StatusOK, asset)
}

// Delete handles DELETE /api/assets/{id}.
func (h *AssetsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := store.DeleteAsset(r.Context(), h.DB, id); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "asset deleted"})
}

// UploadPhoto handles PUT /api/assets/{id}/photo.
func (h *AssetsHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	asset, err := store.GetAsset(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if asset == nil || asset.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "asset not found")
		return
	}

	photo, err := imaging.Process(http.MaxBytesReader(w, r.Body, 10<<20))
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetAssetPhoto(r.Context(), h.DB, id, photo.Data, photo.MIME); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to store photo")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "photo updated"})
}

// GetPhoto handles GET /api/assets/{id}/photo.
func (h *AssetsHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	h.servePhoto(w, r, false)
}

// GetThumbnail handles GET /api/assets/{id}/thumbnail.
func (h *AssetsHandler) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	h.servePhoto(w, r, true)
}

func (h *AssetsHandler) servePhoto(w http.ResponseWriter, r *http.Request, thumbnail bool) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	data, mime, err := store.GetAssetPhoto(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no photo")
		return
	}

	if thumbnail {
		thumb, err := imaging.Thumbnail(data)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "failed to render thumbnail")
			return
		}
		data, mime = thumb.Data, thumb.MIME
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if _, err := w.Write(data); err != nil {
		slog.Error("failed to write photo response", "error", err)
	}
}

// GetHistory handles GET /api/assets/{id}/history.
func (h *AssetsHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	batches, err := store.GetAssetHistory(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get asset history")
		return
	}
	if batches == nil {
		batches = []model.Batch{}
	}
	jsonResponse(w, http.StatusOK, batches)
}
