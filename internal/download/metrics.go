package download

import (
	"github.com/prometheus/client_golang/prometheus"

	"localllm/pkg/types"
)

var (
	bytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "localllm",
			Subsystem: "download",
			Name:      "bytes_total",
			Help:      "Total bytes written to model files",
		},
	)

	resumesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "localllm",
			Subsystem: "download",
			Name:      "resumes_total",
			Help:      "Total range-request resume attempts",
		},
	)

	failuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "localllm",
			Subsystem: "download",
			Name:      "failures_total",
			Help:      "Total failed downloads",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(bytesTotal, resumesTotal, failuresTotal)
}

func failureReason(err error) string {
	switch {
	case types.IsRemote(err):
		return "remote"
	case types.IsStalledDownload(err):
		return "stalled"
	case types.IsRangeUnsupported(err):
		return "range_unsupported"
	default:
		return "io"
	}
}
