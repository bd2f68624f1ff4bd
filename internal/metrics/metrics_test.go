package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RouteLabels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/api/predictions/:dataset", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/api/predictions/:dataset", "GET", "200"))
	for _, ds := range []string{"GEO", "MEO1", "MEO2"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/predictions/"+ds, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/api/predictions/:dataset", "GET", "200"))
	assert.Equal(t, 3.0, after-before)

	otherBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("other", "GET", "404"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wp-admin", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("other", "GET", "404"))-otherBefore)
}

func TestTrainingCollectors(t *testing.T) {
	before := testutil.ToFloat64(trainingEpochsTotal.WithLabelValues("GEO", "lstm"))
	ObserveEpoch("GEO", "lstm")
	ObserveEpoch("GEO", "lstm")
	assert.Equal(t, 2.0, testutil.ToFloat64(trainingEpochsTotal.WithLabelValues("GEO", "lstm"))-before)

	SetEvaluation("GEO", "lstm", 1.25, 0.75, 0.04)
	assert.Equal(t, 1.25, testutil.ToFloat64(evalRMSE.WithLabelValues("GEO", "lstm")))
	assert.Equal(t, 0.75, testutil.ToFloat64(evalMAE.WithLabelValues("GEO", "lstm")))
	assert.Equal(t, 0.04, testutil.ToFloat64(residualShapiroP.WithLabelValues("GEO", "lstm")))

	failed := testutil.ToFloat64(datasetFailuresTotal.WithLabelValues("MEO2"))
	DatasetFailed("MEO2")
	assert.Equal(t, 1.0, testutil.ToFloat64(datasetFailuresTotal.WithLabelValues("MEO2"))-failed)

	ObserveTraining("GEO", "lstm", 3*time.Second)
	assert.Equal(t, 1, testutil.CollectAndCount(trainingDurationSeconds))
}

func TestHandler(t *testing.T) {
	ObserveEpoch("MEO1", "transformer")

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "deeporbit_training_epochs_total")
}
