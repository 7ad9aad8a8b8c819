package handlers

import (
	"humanfinder/config"
	"humanfinder/storage"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
)

type StorageStatusResponse struct {
	Bucket    string `json:"bucket"`
	Type      string `json:"type"`
	FreeSpace int64  `json:"freeSpace"` // -1 when the backend has no limit
	Accepting bool   `json:"accepting"`
}

type StatusResponse struct {
	Models  ModelsStatusResponse  `json:"models"`
	Storage StorageStatusResponse `json:"storage"`
}

// Status reports whether new person reports can currently be accepted
func (h *Handlers) Status(c *gin.Context) {
	result := StatusResponse{
		Models: ModelsStatusResponse{State: h.Models.State().String()},
	}
	if err := h.Models.LastError(); err != nil {
		result.Models.Error = err.Error()
	}
	bucket := h.Storage.GetBucket()
	free := h.Storage.GetFreeSpace()
	result.Storage = StorageStatusResponse{
		Bucket:    bucket.Name,
		Type:      bucket.StorageType.String(),
		FreeSpace: -1,
		Accepting: storage.EnsureFreeSpace(h.Storage, uint64(config.MIN_FREE_SPACE)) == nil,
	}
	if free <= math.MaxInt64 {
		result.Storage.FreeSpace = int64(free)
	}
	status := http.StatusOK
	if !result.Storage.Accepting {
		status = http.StatusInsufficientStorage
	}
	c.JSON(status, result)
}
