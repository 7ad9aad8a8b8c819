package handlers

import (
	"bytes"
	"context"
	"humanfinder/config"
	"humanfinder/faces"
	"humanfinder/images"
	"humanfinder/models"
	"humanfinder/storage"
	"humanfinder/utils"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ReportRequest struct {
	Name             string `form:"name" binding:"required"`
	Status           string `form:"status" binding:"required"`
	Age              string `form:"age"`
	Gender           string `form:"gender"`
	LastSeenDate     string `form:"lastSeenDate"`
	LastSeenLocation string `form:"lastSeenLocation"`
	Description      string `form:"description"`
	ContactInfo      string `form:"contactInfo"`
	PushToken        string `form:"pushToken"`
	ReportedBy       string `form:"reportedBy"`
	ImageURL         string `form:"imageUrl"`
	GpsLat           string `form:"gpsLat"`
	GpsLong          string `form:"gpsLong"`
}

type PersonListRequest struct {
	Status string `form:"status"`
	Query  string `form:"q"`
	Gender string `form:"gender"`
	Limit  int    `form:"limit"`
}

type PersonIDRequest struct {
	ID    string `form:"id" binding:"required"`
	Thumb bool   `form:"thumb"`
}

// loadPhoto reads the "photo" file of a multipart form, or fetches imageURL.
// Only public http(s) and data: URLs are accepted from clients.
func (h *Handlers) loadPhoto(c *gin.Context, imageURL string) (*images.Bitmap, error) {
	file, _, err := c.Request.FormFile("photo")
	if err == nil {
		defer file.Close()
		return h.Images.Read("upload", file)
	}
	if imageURL == "" {
		return nil, nil
	}
	return h.Images.LoadExternal(c.Request.Context(), imageURL)
}

// checkFace gates uploads: unless a face is positively found the photo is
// rejected. Returns false after writing the error response.
func (h *Handlers) checkFace(c *gin.Context, bmp *images.Bitmap) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.MODEL_LOAD_TIMEOUT)
	defer cancel()
	if err := h.Models.EnsureReady(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, ModelsLoadingResponse)
		return false
	}
	check := h.Inspector.CheckFace(c.Request.Context(), bmp)
	switch check.Status {
	case faces.FaceFound:
		return true
	case faces.ModelUnavailable:
		c.JSON(http.StatusServiceUnavailable, ModelsLoadingResponse)
	default:
		if check.Err != nil {
			slog.Warn("face check", "error", check.Err)
		}
		c.JSON(http.StatusUnprocessableEntity, NoFaceResponse)
	}
	return false
}

func (h *Handlers) PersonReport(c *gin.Context) {
	r := ReportRequest{}
	if err := c.ShouldBind(&r); err != nil {
		c.JSON(http.StatusBadRequest, Response{err.Error()})
		return
	}
	person := models.Person{
		ID:               uuid.NewString(),
		Name:             r.Name,
		Status:           models.PersonStatus(strings.ToLower(r.Status)),
		Age:              utils.StringToIntPtr(r.Age),
		Gender:           r.Gender,
		LastSeenDate:     r.LastSeenDate,
		LastSeenLocation: strings.TrimSpace(r.LastSeenLocation),
		Description:      r.Description,
		ContactInfo:      r.ContactInfo,
		PushToken:        strings.TrimSpace(r.PushToken),
		ReportedBy:       r.ReportedBy,
		GpsLat:           utils.StringToFloat64Ptr(r.GpsLat),
		GpsLong:          utils.StringToFloat64Ptr(r.GpsLong),
	}
	if err := person.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, Response{err.Error()})
		return
	}
	bmp, err := h.loadPhoto(c, r.ImageURL)
	if err != nil {
		c.JSON(errorStatus(err), Response{err.Error()})
		return
	}
	if bmp == nil {
		c.JSON(http.StatusBadRequest, NoPhotoResponse)
		return
	}
	defer bmp.Release()
	if !h.checkFace(c, bmp) {
		return
	}
	if h.Geocoder != nil {
		h.Geocoder.Enrich(c.Request.Context(), &person)
	}

	// Photo and thumbnail go to storage, the report references the stored copy
	if err = storage.EnsureFreeSpace(h.Storage, uint64(config.MIN_FREE_SPACE)); err != nil {
		slog.Error("saving photo", "person", person.ID, "error", err)
		c.JSON(http.StatusInsufficientStorage, InsufficientStorageResponse)
		return
	}
	if _, err = h.Storage.Save(storage.PhotoPath(person.ID), bytes.NewReader(bmp.Data)); err != nil {
		slog.Error("saving photo", "person", person.ID, "error", err)
		c.JSON(http.StatusInternalServerError, StorageErrorResponse)
		return
	}
	thumb := bytes.Buffer{}
	converted, err := utils.CreateThumb(utils.ThumbSize, bytes.NewReader(bmp.Data), &thumb)
	if err == nil {
		slog.Debug("thumbnail", "person", person.ID, "width", converted.NewX, "height", converted.NewY, "size", converted.ThumbSize)
		_, err = h.Storage.Save(storage.ThumbPath(person.ID), &thumb)
	}
	if err != nil {
		slog.Warn("saving thumbnail", "person", person.ID, "error", err)
	}
	person.ImageURL = images.StoragePrefix + storage.PhotoPath(person.ID)

	if err = h.Persons.Create(c.Request.Context(), &person); err != nil {
		slog.Error("creating person", "error", err)
		_ = h.Storage.Delete(storage.PhotoPath(person.ID))
		_ = h.Storage.Delete(storage.ThumbPath(person.ID))
		c.JSON(http.StatusInternalServerError, DBErrorResponse)
		return
	}
	slog.Info("person reported", "id", person.ID, "status", person.Status)
	c.JSON(http.StatusOK, person)
}

func (h *Handlers) PersonList(c *gin.Context) {
	r := PersonListRequest{}
	if err := c.ShouldBindQuery(&r); err != nil {
		c.JSON(http.StatusBadRequest, Response{err.Error()})
		return
	}
	status := models.PersonStatus(strings.ToLower(r.Status))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, InvalidStatusResponse)
		return
	}
	result, err := h.Persons.List(c.Request.Context(), models.PersonFilter{
		Status: status,
		Gender: r.Gender,
		Query:  r.Query,
		Limit:  r.Limit,
	})
	if err != nil {
		slog.Error("listing persons", "error", err)
		c.JSON(http.StatusInternalServerError, DBErrorResponse)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handlers) PersonGet(c *gin.Context) {
	r := PersonIDRequest{}
	if err := c.ShouldBindQuery(&r); err != nil {
		c.JSON(http.StatusBadRequest, MissingParamsResponse)
		return
	}
	person, err := h.Persons.Get(c.Request.Context(), r.ID)
	if err != nil {
		c.JSON(errorStatus(err), Response{err.Error()})
		return
	}
	c.JSON(http.StatusOK, person)
}

func (h *Handlers) PersonPhoto(c *gin.Context) {
	r := PersonIDRequest{}
	if err := c.ShouldBindQuery(&r); err != nil {
		c.JSON(http.StatusBadRequest, MissingParamsResponse)
		return
	}
	person, err := h.Persons.Get(c.Request.Context(), r.ID)
	if err != nil {
		c.JSON(errorStatus(err), Response{err.Error()})
		return
	}
	switch {
	case strings.HasPrefix(person.ImageURL, images.StoragePrefix):
		path := strings.TrimPrefix(person.ImageURL, images.StoragePrefix)
		if r.Thumb && h.Storage.GetSize(storage.ThumbPath(person.ID)) > 0 {
			path = storage.ThumbPath(person.ID)
		}
		c.Header("cache-control", "private, max-age=86400")
		h.Storage.Serve(path, c.Request, c.Writer)
	case person.ImageURL != "":
		c.Redirect(http.StatusFound, person.ImageURL)
	default:
		c.JSON(http.StatusNotFound, NotFoundResponse)
	}
}
