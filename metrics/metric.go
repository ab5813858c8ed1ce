package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zos-network/bridge-watcher/logging"
)

var (
	LastCommittedBlockGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "watcher_last_committed_block",
		Help: "Watermark of a watched network, the last block whose transfer events are committed.",
	}, []string{"network"})

	HeadBlockDiffGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "watcher_head_block_diff",
		Help: "How far the watermark lags behind the chain's last-irreversible block.",
	}, []string{"network"})

	ProcessedReportCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reporter_processed_total",
		Help: "Settlement decisions committed, by resulting status.",
	}, []string{"status"})

	MetricsItems = []prometheus.Collector{
		LastCommittedBlockGauge,
		HeadBlockDiffGauge,
		ProcessedReportCounter,
	}
)

const DefaultMetricsAddress = "0.0.0.0:9090"

type Metrics struct {
	httpAddress string
	registry    *prometheus.Registry
	httpServer  *http.Server
}

func NewMetrics(address string) *Metrics {
	return &Metrics{
		httpAddress: address,
		registry:    prometheus.NewRegistry(),
	}
}

func (m *Metrics) Start() {
	m.registry.MustRegister(MetricsItems...)
	go m.serve()
}

func (m *Metrics) serve() {
	router := mux.NewRouter()
	router.Path("/metrics").Handler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	m.httpServer = &http.Server{
		Addr:    m.httpAddress,
		Handler: router,
	}
	if err := m.httpServer.ListenAndServe(); err != nil {
		logging.Logger.Errorf("metrics server stopped, err=%s", err.Error())
	}
}
