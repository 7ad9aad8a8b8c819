package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"humanfinder/config"
	"humanfinder/faces"
	"humanfinder/images"
	"humanfinder/matching"
	"humanfinder/models"
	"humanfinder/push"
	"humanfinder/storage"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	faceA  = color.RGBA{230, 40, 40, 255}
	faceB  = color.RGBA{130, 40, 40, 255}
	noFace = color.RGBA{20, 20, 220, 255}
)

// colorDetector "recognizes" faces by the color in the middle of the photo:
// bright red and dark red are two faces 0.05 apart, anything else has no face
type colorDetector struct{}

func (colorDetector) Detect(data []byte) ([]faces.Face, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	r, _, _, _ := img.At(b.Dx()/2, b.Dy()/2).RGBA()
	red := r >> 8
	d := faces.Descriptor{}
	switch {
	case red > 200:
	case red > 100 && red < 160:
		d[0] = 0.05
	default:
		return nil, nil
	}
	return []faces.Face{{Rectangle: b, Descriptor: d}}, nil
}

func (colorDetector) Close() {}

func photo(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for x := 0; x < 64; x++ {
		for y := 0; y < 64; y++ {
			img.Set(x, y, c)
		}
	}
	buf := bytes.Buffer{}
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestRouter(t *testing.T, open faces.OpenFunc) (*gin.Engine, *Handlers) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	repo := models.NewPersonRepository(db)
	require.NoError(t, repo.Migrate())

	store := storage.NewDiskStorage(&storage.Bucket{Name: "test", Path: t.TempDir()})
	loader := &images.Loader{Client: images.NewPublicClient(), Storage: store, MaxBytes: 1 << 20, MaxDimension: 200, MaxPixels: 1_000_000}
	if open == nil {
		open = func(string) (faces.Detector, error) { return colorDetector{}, nil }
	}
	modelLoader := &faces.ModelLoader{Open: open}
	notifier := push.NewNotifier()
	hub := push.NewHub()
	matcher := matching.NewMatcher(repo, loader, modelLoader, push.NewTrigger(notifier, hub, nil))
	matcher.Ranker.Threshold = 0.5
	h := &Handlers{
		Persons:   repo,
		Storage:   store,
		Images:    loader,
		Models:    modelLoader,
		Inspector: faces.NewInspector(modelLoader),
		Matcher:   matcher,
		Notifier:  notifier,
		Hub:       hub,
	}
	return h.NewRouter(), h
}

func multipartRequest(t *testing.T, url string, fields map[string]string, photo []byte) *http.Request {
	t.Helper()
	body := bytes.Buffer{}
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if photo != nil {
		part, err := w.CreateFormFile("photo", "photo.png")
		require.NoError(t, err)
		_, err = part.Write(photo)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func jsonRequest(method, url string, body any) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, url, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func report(t *testing.T, router *gin.Engine, name, status string, c color.RGBA) models.Person {
	t.Helper()
	rec := serve(router, multipartRequest(t, "/person/report", map[string]string{
		"name":        name,
		"status":      status,
		"gender":      "male",
		"age":         "32",
		"contactInfo": "police@example.com",
	}, photo(t, c)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := models.Person{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestPersonReport(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	p := report(t, router, "Alex Johnson", "missing", faceA)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, models.StatusMissing, p.Status)
	assert.Equal(t, images.StoragePrefix+storage.PhotoPath(p.ID), p.ImageURL)
	require.NotNil(t, p.Age)
	assert.Equal(t, 32, *p.Age)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/person/photo?id="+p.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "private, max-age=86400", rec.Header().Get("cache-control"))

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/person/photo?id="+p.ID+"&thumb=1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	tests := []struct {
		name   string
		fields map[string]string
		photo  []byte
		status int
	}{
		{"no face", map[string]string{"name": "Someone", "status": "found"}, photo(t, noFace), http.StatusUnprocessableEntity},
		{"bad status", map[string]string{"name": "Someone", "status": "lost"}, photo(t, faceA), http.StatusBadRequest},
		{"no name", map[string]string{"status": "found"}, photo(t, faceA), http.StatusBadRequest},
		{"bad date", map[string]string{"name": "Someone", "status": "found", "lastSeenDate": "yesterday"}, photo(t, faceA), http.StatusBadRequest},
		{"no photo", map[string]string{"name": "Someone", "status": "found"}, nil, http.StatusBadRequest},
		{"not an image", map[string]string{"name": "Someone", "status": "found"}, []byte("hello"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, multipartRequest(t, "/person/report", tt.fields, tt.photo))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/person/list", nil))
	list := []models.Person{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1, "rejected reports are not stored")
}

func TestPersonListGet(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	missing := report(t, router, "Alex Johnson", "missing", faceA)
	report(t, router, "Unknown Male", "found", faceB)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/person/list?status=missing", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	list := []models.Person{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, missing.ID, list[0].ID)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/person/list?q=unknown", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Unknown Male", list[0].Name)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/person/list?status=lost", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/person/get?id="+missing.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = serve(router, httptest.NewRequest(http.MethodGet, "/person/get?id=nobody", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = serve(router, httptest.NewRequest(http.MethodGet, "/person/get", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMatchRun(t *testing.T) {
	router, h := newTestRouter(t, nil)
	missing := report(t, router, "Alex Johnson", "missing", faceA)
	found := report(t, router, "Alex J.", "found", faceB)

	rec := serve(router, jsonRequest(http.MethodPost, "/match/run", MatchRequest{PersonID: missing.ID}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := MatchResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Matches, 1)
	assert.Equal(t, found.ID, res.Matches[0].ID)
	require.NotNil(t, res.Matches[0].MatchScore)
	assert.InDelta(t, 0.95, *res.Matches[0].MatchScore, 1e-6)
	assert.Equal(t, "Alex Johnson (Missing) may match with Alex J. (Found) - 95% similarity", res.Alert.Description)
	assert.Equal(t, matching.StateDone, res.States[len(res.States)-1])

	// Notifications
	rec = serve(router, httptest.NewRequest(http.MethodGet, "/notification/list", nil))
	list := NotificationListResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, 1, list.Unread)
	assert.Equal(t, missing.ID, list.Notifications[0].Missing.ID)

	rec = serve(router, jsonRequest(http.MethodPost, "/notification/read", NotificationReadRequest{ID: list.Notifications[0].ID}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, h.Notifier.Unread())
	rec = serve(router, jsonRequest(http.MethodPost, "/notification/read", NotificationReadRequest{ID: "nope"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = serve(router, httptest.NewRequest(http.MethodPost, "/notification/clear", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, h.Notifier.List())

	// Uploaded photo
	rec = serve(router, multipartRequest(t, "/match/run", nil, photo(t, faceA)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Matches, 2)
	assert.Equal(t, missing.ID, res.Matches[0].ID)
	assert.Contains(t, res.States, matching.StateCheckingFacePresence)

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"upload without face", multipartRequest(t, "/match/run", nil, photo(t, noFace)), http.StatusUnprocessableEntity},
		{"person and photo", multipartRequest(t, "/match/run", map[string]string{"person_id": missing.ID}, photo(t, faceA)), http.StatusBadRequest},
		{"nothing", jsonRequest(http.MethodPost, "/match/run", MatchRequest{}), http.StatusBadRequest},
		{"unknown person", jsonRequest(http.MethodPost, "/match/run", MatchRequest{PersonID: "nobody"}), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, tt.req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestFaceCheck(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := serve(router, multipartRequest(t, "/face/check", nil, photo(t, faceA)))
	require.Equal(t, http.StatusOK, rec.Code)
	res := FaceCheckResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.HasFace)
	assert.Equal(t, 1, res.Faces)

	rec = serve(router, multipartRequest(t, "/face/check", nil, photo(t, noFace)))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.HasFace)
	assert.Equal(t, "no_face", res.Status)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/models/status", nil))
	status := ModelsStatusResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ready", status.State)
}

func TestModelsUnavailable(t *testing.T) {
	router, _ := newTestRouter(t, func(string) (faces.Detector, error) {
		return nil, errors.New("missing weights")
	})

	rec := serve(router, multipartRequest(t, "/face/check", nil, photo(t, faceA)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(router, multipartRequest(t, "/person/report", map[string]string{"name": "A", "status": "found"}, photo(t, faceA)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(router, multipartRequest(t, "/match/run", nil, photo(t, faceA)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := Response{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, matching.ErrModelsUnavailable.Error(), resp.Error)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/models/status", nil))
	status := ModelsStatusResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "idle", status.State)
	assert.Contains(t, status.Error, "missing weights")
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{matching.ErrInvalidRequest, http.StatusBadRequest},
		{models.ErrInvalidStatus, http.StatusBadRequest},
		{fmt.Errorf("upload: %w", images.ErrDecode), http.StatusBadRequest},
		{images.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{images.ErrTooManyPixels, http.StatusRequestEntityTooLarge},
		{&images.FetchError{URL: "http://127.0.0.1", Err: images.ErrForbiddenHost}, http.StatusBadRequest},
		{fmt.Errorf("%w: 0 bytes free in bucket test", storage.ErrInsufficientSpace), http.StatusInsufficientStorage},
		{matching.ErrPersonNotFound, http.StatusNotFound},
		{matching.ErrNoFace, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: %w", matching.ErrModelsUnavailable, faces.ErrModelsLoading), http.StatusServiceUnavailable},
		{&images.FetchError{URL: "http://x", StatusCode: 404}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, errorStatus(tt.err))
		})
	}
	assert.Equal(t, matching.ErrSubjectImage.Error(), errorMessage(fmt.Errorf("%w: %w", matching.ErrSubjectImage, errors.New("dial tcp"))))
}

func TestPersonReportImageURL(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(photo(t, faceA))
	}))
	defer remote.Close()

	tests := []struct {
		name     string
		imageURL string
		status   int
	}{
		{"stored photo", "storage:" + storage.PhotoPath("someone-else"), http.StatusBadRequest},
		{"local file", "file:///etc/passwd", http.StatusBadRequest},
		{"loopback host", remote.URL + "/photo.png", http.StatusBadRequest},
		{"metadata host", "http://169.254.169.254/latest/meta-data", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, multipartRequest(t, "/person/report", map[string]string{
				"name":     "Someone",
				"status":   "found",
				"imageUrl": tt.imageURL,
			}, nil))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/person/list", nil))
	list := []models.Person{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list)
}

func TestPersonReportPushToken(t *testing.T) {
	router, h := newTestRouter(t, nil)

	rec := serve(router, multipartRequest(t, "/person/report", map[string]string{
		"name":        "Alex Johnson",
		"status":      "missing",
		"contactInfo": "call +1 555 0100",
		"pushToken":   " device-token-1 ",
	}, photo(t, faceA)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "device-token-1")

	p := models.Person{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	stored, err := h.Persons.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "device-token-1", stored.PushToken)
	assert.Equal(t, "call +1 555 0100", stored.ContactInfo)
}

func TestStorageSpace(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	minFree := config.MIN_FREE_SPACE
	t.Cleanup(func() { config.MIN_FREE_SPACE = minFree })

	config.MIN_FREE_SPACE = 0
	rec := serve(router, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	status := StatusResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "test", status.Storage.Bucket)
	assert.Equal(t, "file", status.Storage.Type)
	assert.Greater(t, status.Storage.FreeSpace, int64(0))
	assert.True(t, status.Storage.Accepting)
	assert.NotEmpty(t, status.Models.State)

	config.MIN_FREE_SPACE = math.MaxInt
	rec = serve(router, multipartRequest(t, "/person/report", map[string]string{"name": "A", "status": "found"}, photo(t, faceA)))
	assert.Equal(t, http.StatusInsufficientStorage, rec.Code, rec.Body.String())
	resp := Response{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, storage.ErrInsufficientSpace.Error(), resp.Error)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusInsufficientStorage, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Storage.Accepting)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/person/list", nil))
	list := []models.Person{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list)
}
