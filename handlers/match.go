package handlers

import (
	"humanfinder/faces"
	"humanfinder/matching"
	"humanfinder/models"
	"humanfinder/push"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type MatchRequest struct {
	PersonID string `json:"person_id" form:"person_id"`
}

type MatchResponse struct {
	Subject models.Person    `json:"subject"`
	Matches []models.Person  `json:"matches"`
	Alert   push.Alert       `json:"alert"`
	States  []matching.State `json:"states"`
}

type FaceCheckResponse struct {
	HasFace bool   `json:"has_face"`
	Faces   int    `json:"faces"`
	Status  string `json:"status"`
}

// MatchRun accepts either JSON {"person_id": ...} or a multipart form with a "photo"
func (h *Handlers) MatchRun(c *gin.Context) {
	r := MatchRequest{}
	req := matching.Request{}
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&r); err != nil {
			c.JSON(http.StatusBadRequest, Response{err.Error()})
			return
		}
		bmp, err := h.loadPhoto(c, "")
		if err != nil {
			c.JSON(errorStatus(err), Response{err.Error()})
			return
		}
		if bmp != nil {
			defer bmp.Release()
		}
		req.Upload = bmp
	} else if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, Response{err.Error()})
		return
	}
	req.PersonID = strings.TrimSpace(r.PersonID)

	result, err := h.Matcher.Run(c.Request.Context(), req)
	if err != nil {
		c.JSON(errorStatus(err), Response{errorMessage(err)})
		return
	}
	c.JSON(http.StatusOK, MatchResponse{
		Subject: result.Subject,
		Matches: result.Matches,
		Alert:   result.Alert,
		States:  result.States,
	})
}

func (h *Handlers) FaceCheck(c *gin.Context) {
	bmp, err := h.loadPhoto(c, "")
	if err != nil {
		c.JSON(errorStatus(err), Response{err.Error()})
		return
	}
	if bmp == nil {
		c.JSON(http.StatusBadRequest, NoPhotoResponse)
		return
	}
	defer bmp.Release()
	if err = h.Models.EnsureReady(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, ModelsLoadingResponse)
		return
	}
	check := h.Inspector.CheckFace(c.Request.Context(), bmp)
	if check.Status == faces.ModelUnavailable {
		c.JSON(http.StatusServiceUnavailable, ModelsLoadingResponse)
		return
	}
	c.JSON(http.StatusOK, FaceCheckResponse{
		HasFace: check.Status == faces.FaceFound,
		Faces:   check.Count,
		Status:  check.Status.String(),
	})
}

type ModelsStatusResponse struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

func (h *Handlers) ModelsStatus(c *gin.Context) {
	result := ModelsStatusResponse{State: h.Models.State().String()}
	if err := h.Models.LastError(); err != nil {
		result.Error = err.Error()
	}
	c.JSON(http.StatusOK, result)
}
