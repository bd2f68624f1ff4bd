// Package metrics defines the Prometheus collectors of the training
// pipeline and the results API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deeporbit_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deeporbit_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	trainingEpochsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deeporbit_training_epochs_total",
			Help: "Training epochs completed.",
		},
		[]string{"dataset", "model"},
	)

	trainingDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deeporbit_training_duration_seconds",
			Help:    "Wall time of one model fit.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		},
		[]string{"dataset", "model"},
	)

	evalRMSE = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deeporbit_eval_rmse_meters",
			Help: "Test-set RMSE of the latest run.",
		},
		[]string{"dataset", "model"},
	)

	evalMAE = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deeporbit_eval_mae_meters",
			Help: "Test-set MAE of the latest run.",
		},
		[]string{"dataset", "model"},
	)

	residualShapiroP = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deeporbit_residual_shapiro_p",
			Help: "Shapiro-Wilk p-value of the latest run's residuals.",
		},
		[]string{"dataset", "model"},
	)

	datasetFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deeporbit_dataset_failures_total",
			Help: "Datasets skipped because preparation or training failed.",
		},
		[]string{"dataset"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(trainingEpochsTotal)
	prometheus.MustRegister(trainingDurationSeconds)
	prometheus.MustRegister(evalRMSE)
	prometheus.MustRegister(evalMAE)
	prometheus.MustRegister(residualShapiroP)
	prometheus.MustRegister(datasetFailuresTotal)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and duration. Requests are labelled by
// their route template so parameterized paths share one series; unmatched
// paths collapse to "other".
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "other"
		}
		code := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(path, c.Request.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// ObserveEpoch counts one finished epoch.
func ObserveEpoch(dataset, model string) {
	trainingEpochsTotal.WithLabelValues(dataset, model).Inc()
}

// ObserveTraining records how long a fit took.
func ObserveTraining(dataset, model string, d time.Duration) {
	trainingDurationSeconds.WithLabelValues(dataset, model).Observe(d.Seconds())
}

// SetEvaluation publishes the test metrics of a (dataset, model) pair.
// A NaN p-value (constant residuals) is published as is.
func SetEvaluation(dataset, model string, rmse, mae, shapiroP float64) {
	evalRMSE.WithLabelValues(dataset, model).Set(rmse)
	evalMAE.WithLabelValues(dataset, model).Set(mae)
	residualShapiroP.WithLabelValues(dataset, model).Set(shapiroP)
}

// DatasetFailed counts a skipped dataset.
func DatasetFailed(dataset string) {
	datasetFailuresTotal.WithLabelValues(dataset).Inc()
}
