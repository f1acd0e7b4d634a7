package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swapwithus/listing-service/internal/common"
	"github.com/swapwithus/listing-service/internal/logging"
	"github.com/swapwithus/listing-service/internal/server/models"
	"github.com/swapwithus/listing-service/internal/server/schema"
)

const testSecret = "test-jwt-secret"

type fakeWriter struct {
	createdFields schema.Fields
	createdMeta   []models.ImageMetadata
	createdFiles  []models.ImageFile
	createdOwner  *models.User
	err           error
}

func (f *fakeWriter) Create(ctx context.Context, cat schema.Category, owner *models.User,
	fields schema.Fields, meta []models.ImageMetadata, files []models.ImageFile) (string, int, error) {
	if f.err != nil {
		return "", 0, f.err
	}
	f.createdOwner = owner
	f.createdFields = fields
	f.createdMeta = meta
	f.createdFiles = files
	return "lst-1", len(files), nil
}

func (f *fakeWriter) Update(ctx context.Context, cat schema.Category, listingID, ownerID string,
	fields schema.Fields, meta []models.ImageMetadata, files []models.ImageFile) error {
	return f.err
}

func (f *fakeWriter) Delete(ctx context.Context, cat schema.Category, listingID, ownerID string) error {
	return f.err
}

type fakeFeed struct {
	browsePage *models.BrowsePage
	page       int
	pageSize   int
	err        error
}

func (f *fakeFeed) ListForOwner(ctx context.Context, cat schema.Category, ownerID string) ([]models.ListingWithImages, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []models.ListingWithImages{{ListingID: "lst-1", Category: string(cat)}}, nil
}

func (f *fakeFeed) Browse(ctx context.Context, cat schema.Category, page, pageSize int) (*models.BrowsePage, error) {
	f.page, f.pageSize = page, pageSize
	if f.err != nil {
		return nil, f.err
	}
	return f.browsePage, nil
}

type fakeAccounts struct {
	deleted []string
	err     error
}

func (f *fakeAccounts) DeleteAccount(ctx context.Context, ownerID string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, ownerID)
	return nil
}

func newServer(w *fakeWriter, fr *fakeFeed, a *fakeAccounts) http.Handler {
	h := NewHandler(w, fr, a, logging.NewJSONLogger())
	return NewRouter(h, testSecret)
}

func bearerToken(t *testing.T, sub string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":     sub,
		"email":   "u@example.com",
		"name":    "U",
		"picture": "https://example.com/u.png",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func multipartBody(t *testing.T, listingJSON string, images ...[]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if listingJSON != "" {
		require.NoError(t, mw.WriteField("listing", listingJSON))
	}
	for _, img := range images {
		part, err := mw.CreateFormFile("images", "photo.jpg")
		require.NoError(t, err)
		_, err = part.Write(img)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCreateListing(t *testing.T) {
	w := &fakeWriter{}
	srv := newServer(w, &fakeFeed{}, &fakeAccounts{})

	listing := `{
		"title": "Dune",
		"author": "Frank Herbert",
		"genre_tags": ["sf"],
		"images_metadata": [{"tag": "cover", "is_hero": true, "sort_order": 0}]
	}`
	body, contentType := multipartBody(t, listing, []byte("jpegbytes"))

	req := httptest.NewRequest(http.MethodPost, "/api/book", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearerToken(t, "user-1"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "lst-1", resp["listing_id"])
	assert.Equal(t, float64(1), resp["images_uploaded"])

	// metadata is split out of the listing JSON, fields stay
	assert.Equal(t, "Dune", w.createdFields["title"])
	_, leaked := w.createdFields["images_metadata"]
	assert.False(t, leaked)
	require.Len(t, w.createdMeta, 1)
	assert.True(t, w.createdMeta[0].IsHero)

	require.Len(t, w.createdFiles, 1)
	assert.Equal(t, []byte("jpegbytes"), w.createdFiles[0].Data)

	// profile claims flow into the upserted owner
	assert.Equal(t, "user-1", w.createdOwner.OwnerID)
	assert.Equal(t, "u@example.com", w.createdOwner.Email)
}

func TestCreateListing_RequiresAuth(t *testing.T) {
	srv := newServer(&fakeWriter{}, &fakeFeed{}, &fakeAccounts{})

	body, contentType := multipartBody(t, `{"title":"x"}`, []byte("img"))
	req := httptest.NewRequest(http.MethodPost, "/api/book", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/book", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateListing_UnknownCategory(t *testing.T) {
	srv := newServer(&fakeWriter{}, &fakeFeed{}, &fakeAccounts{})

	body, contentType := multipartBody(t, `{"title":"x"}`, []byte("img"))
	req := httptest.NewRequest(http.MethodPost, "/api/car", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearerToken(t, "user-1"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{common.ErrValidation, http.StatusBadRequest},
		{common.ErrForbidden, http.StatusForbidden},
		{common.ErrNotFound, http.StatusNotFound},
		{common.ErrUploadFailed, http.StatusInternalServerError},
		{common.ErrPersistenceFailed, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		srv := newServer(&fakeWriter{err: tc.err}, &fakeFeed{}, &fakeAccounts{})

		req := httptest.NewRequest(http.MethodDelete, "/api/book/lst-1", nil)
		req.Header.Set("Authorization", bearerToken(t, "user-1"))
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
	}
}

func TestInternalCausesDoNotLeak(t *testing.T) {
	srv := newServer(&fakeWriter{err: errors.New("password=hunter2 dial failed")}, &fakeFeed{}, &fakeAccounts{})

	req := httptest.NewRequest(http.MethodDelete, "/api/book/lst-1", nil)
	req.Header.Set("Authorization", bearerToken(t, "user-1"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hunter2")
	assert.Contains(t, rec.Body.String(), common.ErrInternal.Error())
}

func TestBrowse(t *testing.T) {
	feed := &fakeFeed{browsePage: &models.BrowsePage{
		Pagination: models.Pagination{Page: 2, PageSize: 10, TotalCount: 25, TotalPages: 3},
	}}
	srv := newServer(&fakeWriter{}, feed, &fakeAccounts{})

	// public: no token needed
	req := httptest.NewRequest(http.MethodGet, "/api/browse/book?page=2&page_size=10", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, feed.page)
	assert.Equal(t, 10, feed.pageSize)
}

func TestBrowse_BadQuery(t *testing.T) {
	srv := newServer(&fakeWriter{}, &fakeFeed{}, &fakeAccounts{})

	req := httptest.NewRequest(http.MethodGet, "/api/browse/book?page=abc", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMyListings(t *testing.T) {
	srv := newServer(&fakeWriter{}, &fakeFeed{}, &fakeAccounts{})

	req := httptest.NewRequest(http.MethodGet, "/api/book/me", nil)
	req.Header.Set("Authorization", bearerToken(t, "user-1"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lst-1")
}

func TestDeleteAccount(t *testing.T) {
	accounts := &fakeAccounts{}
	srv := newServer(&fakeWriter{}, &fakeFeed{}, accounts)

	req := httptest.NewRequest(http.MethodDelete, "/api/users/me", nil)
	req.Header.Set("Authorization", bearerToken(t, "user-1"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"user-1"}, accounts.deleted)
}
