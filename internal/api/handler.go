// Package api serves run results over HTTP: metrics, predictions and plots
// indexed by the results store.
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Hrishi-524/DeepOrbit/internal/store"
)

// DefaultPredictionLimit is how many rows per model /api/predictions
// returns when no limit is given.
const DefaultPredictionLimit = 500

// Index is the read side of the results store.
type Index interface {
	Metrics() (map[string]map[string]store.Metric, bool)
	Predictions(dataset string, limit int) (map[string][]store.Prediction, bool)
	PlotPath(name string) (string, bool)
	PlotGroups(datasets []string) (map[string][]string, bool)
}

type Handler struct {
	index    Index
	datasets []string
}

func NewHandler(index Index, datasets []string) *Handler {
	return &Handler{index: index, datasets: datasets}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Datasets(c *gin.Context) {
	c.JSON(http.StatusOK, h.datasets)
}

func (h *Handler) Metrics(c *gin.Context) {
	m, ok := h.index.Metrics()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Metrics file not found"})
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) Predictions(c *gin.Context) {
	dataset := c.Param("dataset")

	limit := DefaultPredictionLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	p, ok := h.index.Predictions(dataset, limit)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No predictions found for " + dataset})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) Plot(c *gin.Context) {
	name := c.Param("filename")
	path, ok := h.index.PlotPath(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Plot not found: " + name})
		return
	}
	c.Header("Content-Type", "image/png")
	c.File(path)
}

func (h *Handler) AvailablePlots(c *gin.Context) {
	groups, ok := h.index.PlotGroups(h.datasets)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Plots directory not found"})
		return
	}
	c.JSON(http.StatusOK, groups)
}
