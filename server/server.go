package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/zos-network/bridge-watcher/cache"
	"github.com/zos-network/bridge-watcher/chain"
	"github.com/zos-network/bridge-watcher/db"
	"github.com/zos-network/bridge-watcher/logging"
	"github.com/zos-network/bridge-watcher/util"
)

const (
	// BlocksIn10Minutes is the stall threshold: a watcher further behind the
	// head than this is flagged unhealthy (2 blocks per second).
	BlocksIn10Minutes = 2 * 10 * 60

	headCacheTTL   = 30 * time.Second
	headRPCTimeout = 10 * time.Second
	reportsLimit   = 100
)

// Server is the operator-facing status API: read-only views over the ledger
// plus the single checkpoint-advance mutation.
type Server struct {
	dao         db.BridgeDao
	registry    *chain.Registry
	headCache   cache.Cache
	httpAddress string
	httpServer  *http.Server
}

func NewServer(dao db.BridgeDao, registry *chain.Registry, address string) *Server {
	headCache, err := cache.NewLocalCache(cache.DefaultCacheSize, headCacheTTL)
	if err != nil {
		panic(err)
	}
	return &Server{
		dao:         dao,
		registry:    registry,
		headCache:   headCache,
		httpAddress: address,
	}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Path("/info").Methods(http.MethodGet).HandlerFunc(s.handleInfo)
	router.Path("/health").Methods(http.MethodGet).HandlerFunc(s.handleHealth)
	router.Path("/health/clear/{eventId:[0-9]+}").Methods(http.MethodGet).HandlerFunc(s.handleClear)
	router.Path("/reports").Methods(http.MethodGet).HandlerFunc(s.handleReports)
	return router
}

func (s *Server) Start() {
	go s.serve()
}

func (s *Server) serve() {
	s.httpServer = &http.Server{
		Addr:    s.httpAddress,
		Handler: s.Router(),
	}
	if err := s.httpServer.ListenAndServe(); err != nil {
		logging.Logger.Errorf("status server stopped, err=%s", err.Error())
	}
}

type watcherStatus struct {
	Network            string `json:"network"`
	LastCommittedBlock uint64 `json:"lastCommittedBlock"`
	HeadBlockNumber    uint64 `json:"headBlockNumber"`
	DiffToHead         int64  `json:"diffToHead"`
	IsError            bool   `json:"isError,omitempty"`
}

// watcherStatuses collects watermark-vs-head for every watched network; head
// numbers are cached briefly so status reads do not hammer the RPC nodes.
func (s *Server) watcherStatuses(ctx context.Context) ([]*watcherStatus, error) {
	statuses := make([]*watcherStatus, 0, len(s.registry.Watched()))
	for _, network := range s.registry.Watched() {
		wm, err := s.dao.GetWatermark(string(network))
		if err != nil {
			return nil, err
		}
		head, err := s.headBlockNumber(ctx, network)
		if err != nil {
			return nil, err
		}
		diff := int64(head) - int64(wm.LastCommittedBlock)
		statuses = append(statuses, &watcherStatus{
			Network:            string(network),
			LastCommittedBlock: wm.LastCommittedBlock,
			HeadBlockNumber:    head,
			DiffToHead:         diff,
			IsError:            diff > BlocksIn10Minutes,
		})
	}
	return statuses, nil
}

func (s *Server) headBlockNumber(ctx context.Context, network chain.Network) (uint64, error) {
	if cached, ok := s.headCache.Get(string(network)); ok {
		return cached.(uint64), nil
	}
	gateway, err := s.registry.Gateway(network)
	if err != nil {
		return 0, err
	}
	hctx, cancel := context.WithTimeout(ctx, headRPCTimeout)
	defer cancel()
	head, err := gateway.HeadBlockNumber(hctx)
	if err != nil {
		return 0, err
	}
	s.headCache.Set(string(network), head)
	return head, nil
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.watcherStatuses(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"watchers": statuses,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.watcherStatuses(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	checkpoint, err := s.dao.GetReviewCheckpoint()
	if err != nil {
		writeError(w, err)
		return
	}
	unreviewed, err := s.dao.GetOldestUnreviewedDeadEnd(checkpoint.LastReviewedEventId)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"watchers": statuses,
		"reports": map[string]bool{
			"isError": unreviewed != nil,
		},
	})
}

// handleClear advances the manual-review checkpoint, marking every dead-end
// report up to the given event id as triaged.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	eventId, err := util.StringToUint64(mux.Vars(r)["eventId"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]string{"error": "invalid eventId"})
		return
	}
	if err = s.dao.AdvanceReviewCheckpoint(int64(eventId)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	details, err := s.dao.ListReports(reportsLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	type row struct {
		EventId        int64  `json:"eventId"`
		Status         string `json:"status"`
		Retries        int    `json:"retries"`
		LastError      string `json:"lastError"`
		Network        string `json:"network"`
		BlockNumber    uint64 `json:"blockNumber"`
		TransactionId  string `json:"transactionId"`
		GlobalSequence uint64 `json:"globalSequence"`
		Payload        string `json:"payload"`
	}
	rows := make([]row, 0, len(details))
	for _, d := range details {
		rows = append(rows, row{
			EventId:        d.EventId,
			Status:         d.Status.String(),
			Retries:        d.Retries,
			LastError:      d.LastError,
			Network:        d.Network,
			BlockNumber:    d.BlockNumber,
			TransactionId:  d.TransactionId,
			GlobalSequence: d.GlobalSequence,
			Payload:        d.EventPayload,
		})
	}
	writeJSON(w, map[string]interface{}{"reports": rows})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Logger.Errorf("failed to write response, err=%s", err.Error())
	}
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
