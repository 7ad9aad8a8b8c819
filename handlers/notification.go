package handlers

import (
	"humanfinder/push"
	"net/http"

	"github.com/gin-gonic/gin"
)

type NotificationListResponse struct {
	Notifications []push.Notification `json:"notifications"`
	Unread        int                 `json:"unread"`
}

type NotificationReadRequest struct {
	ID string `json:"id" binding:"required"`
}

func (h *Handlers) NotificationList(c *gin.Context) {
	c.JSON(http.StatusOK, NotificationListResponse{
		Notifications: h.Notifier.List(),
		Unread:        h.Notifier.Unread(),
	})
}

func (h *Handlers) NotificationRead(c *gin.Context) {
	r := NotificationReadRequest{}
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, MissingParamsResponse)
		return
	}
	if !h.Notifier.MarkRead(r.ID) {
		c.JSON(http.StatusNotFound, NotificationIDResponse)
		return
	}
	c.JSON(http.StatusOK, OKResponse)
}

func (h *Handlers) NotificationClear(c *gin.Context) {
	h.Notifier.Clear()
	c.JSON(http.StatusOK, OKResponse)
}

func (h *Handlers) WebSocket(c *gin.Context) {
	h.Hub.ServeWS(c.Writer, c.Request)
}
