// Package httpapi exposes the listing service over HTTP. The write surface
// is multipart: a "listing" form field carries the JSON payload (listing
// fields plus an optional images_metadata array) and an "images" file field
// carries the uploads themselves.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/swapwithus/listing-service/internal/common"
	"github.com/swapwithus/listing-service/internal/logging"
	"github.com/swapwithus/listing-service/internal/server/models"
	"github.com/swapwithus/listing-service/internal/server/schema"
)

// metadataField is the reserved key of the listing JSON that carries image
// metadata; everything else is treated as listing fields.
const metadataField = "images_metadata"

// ListingWriter is the write side of the listing coordinator.
type ListingWriter interface {
	Create(ctx context.Context, cat schema.Category, owner *models.User,
		fields schema.Fields, meta []models.ImageMetadata, files []models.ImageFile) (string, int, error)
	Update(ctx context.Context, cat schema.Category, listingID, ownerID string,
		fields schema.Fields, meta []models.ImageMetadata, files []models.ImageFile) error
	Delete(ctx context.Context, cat schema.Category, listingID, ownerID string) error
}

// FeedReader is the read side.
type FeedReader interface {
	ListForOwner(ctx context.Context, cat schema.Category, ownerID string) ([]models.ListingWithImages, error)
	Browse(ctx context.Context, cat schema.Category, page, pageSize int) (*models.BrowsePage, error)
}

// AccountService handles account-level operations.
type AccountService interface {
	DeleteAccount(ctx context.Context, ownerID string) error
}

// Handler holds the HTTP handlers and their dependencies.
type Handler struct {
	listings ListingWriter
	feed     FeedReader
	accounts AccountService
	logger   logging.Logger
}

func NewHandler(listings ListingWriter, feed FeedReader, accounts AccountService, logger logging.Logger) *Handler {
	return &Handler{listings: listings, feed: feed, accounts: accounts, logger: logger}
}

// Health serves liveness probes.
func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// CreateListing handles POST /api/:category.
func (h *Handler) CreateListing(c echo.Context) error {
	id, ok := callerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	cat, err := schema.ParseCategory(c.Param("category"))
	if err != nil {
		return h.writeError(c, err)
	}

	fields, meta, err := parseListingForm(c)
	if err != nil {
		return h.writeError(c, err)
	}
	files, err := readUploads(c)
	if err != nil {
		return h.writeError(c, err)
	}

	owner := &models.User{
		OwnerID:      id.OwnerID,
		Email:        id.Email,
		Name:         id.Name,
		ProfileImage: id.ProfileImage,
	}
	listingID, count, err := h.listings.Create(c.Request().Context(), cat, owner, fields, meta, files)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"listing_id":      listingID,
		"images_uploaded": count,
	})
}

// UpdateListing handles PUT /api/:category/:listing_id.
func (h *Handler) UpdateListing(c echo.Context) error {
	id, ok := callerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	cat, err := schema.ParseCategory(c.Param("category"))
	if err != nil {
		return h.writeError(c, err)
	}
	listingID := c.Param("listing_id")

	fields, meta, err := parseListingForm(c)
	if err != nil {
		return h.writeError(c, err)
	}
	files, err := readUploads(c)
	if err != nil {
		return h.writeError(c, err)
	}

	if err := h.listings.Update(c.Request().Context(), cat, listingID, id.OwnerID, fields, meta, files); err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"listing_id": listingID})
}

// DeleteListing handles DELETE /api/:category/:listing_id.
func (h *Handler) DeleteListing(c echo.Context) error {
	id, ok := callerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	cat, err := schema.ParseCategory(c.Param("category"))
	if err != nil {
		return h.writeError(c, err)
	}
	listingID := c.Param("listing_id")

	if err := h.listings.Delete(c.Request().Context(), cat, listingID, id.OwnerID); err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"listing_id": listingID})
}

// MyListings handles GET /api/:category/me.
func (h *Handler) MyListings(c echo.Context) error {
	id, ok := callerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	cat, err := schema.ParseCategory(c.Param("category"))
	if err != nil {
		return h.writeError(c, err)
	}

	listings, err := h.feed.ListForOwner(c.Request().Context(), cat, id.OwnerID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, listings)
}

// Browse handles GET /api/browse/:category.
func (h *Handler) Browse(c echo.Context) error {
	cat, err := schema.ParseCategory(c.Param("category"))
	if err != nil {
		return h.writeError(c, err)
	}
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return h.writeError(c, err)
	}
	pageSize, err := queryInt(c, "page_size", 0)
	if err != nil {
		return h.writeError(c, err)
	}

	bp, err := h.feed.Browse(c.Request().Context(), cat, page, pageSize)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, bp)
}

// DeleteAccount handles DELETE /api/users/me.
func (h *Handler) DeleteAccount(c echo.Context) error {
	id, ok := callerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.accounts.DeleteAccount(c.Request().Context(), id.OwnerID); err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": id.OwnerID})
}

// parseListingForm decodes the "listing" JSON form field into listing fields
// and image metadata.
func parseListingForm(c echo.Context) (schema.Fields, []models.ImageMetadata, error) {
	raw := c.FormValue("listing")
	if raw == "" {
		return nil, nil, nil
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, nil, common.ErrValidation
	}

	var meta []models.ImageMetadata
	if rawMeta, ok := payload[metadataField]; ok {
		if err := json.Unmarshal(rawMeta, &meta); err != nil {
			return nil, nil, common.ErrValidation
		}
		delete(payload, metadataField)
	}

	fields := make(schema.Fields, len(payload))
	for k, v := range payload {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return nil, nil, common.ErrValidation
		}
		fields[k] = val
	}
	return fields, meta, nil
}

// readUploads drains the "images" file parts into memory. Per-file size and
// type limits are enforced downstream, before any object-store call.
func readUploads(c echo.Context) ([]models.ImageFile, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if err == http.ErrNotMultipart || err == http.ErrMissingBoundary {
			return nil, nil
		}
		return nil, common.ErrValidation
	}

	parts := form.File["images"]
	files := make([]models.ImageFile, 0, len(parts))
	for _, part := range parts {
		f, err := part.Open()
		if err != nil {
			return nil, common.ErrValidation
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, common.ErrValidation
		}
		files = append(files, models.ImageFile{
			Data:        data,
			ContentType: part.Header.Get("Content-Type"),
		})
	}
	return files, nil
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, common.ErrValidation
	}
	return n, nil
}

// writeError maps service errors to HTTP responses. Internal causes never
// leak: anything that is not a client error gets the workflow sentinel's
// message or a generic one.
func (h *Handler) writeError(c echo.Context, err error) error {
	if common.IsClientError(err) {
		return c.JSON(statusFor(err), echo.Map{"error": err.Error()})
	}

	h.logger.Error(c.Request().Context(), "request failed",
		"method", c.Request().Method, "path", c.Path(), "error", err)

	msg := common.ErrInternal.Error()
	if errors.Is(err, common.ErrUploadFailed) || errors.Is(err, common.ErrPersistenceFailed) {
		msg = err.Error()
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
