package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"DustMite-Agent/internal/auth"
	xerrors "DustMite-Agent/internal/errors"
	"DustMite-Agent/internal/observability/metrics"
	"DustMite-Agent/internal/storage/mysql"
	"DustMite-Agent/internal/treasury"
	"DustMite-Agent/pkg/logger"
)

// Service 是 API 层对智能体的最小依赖。
type Service interface {
	Status(ctx context.Context) (*treasury.Status, error)
	Chat(ctx context.Context, message string) (string, error)
}

// Trigger 是手动触发周期的最小依赖。
type Trigger interface {
	TriggerNow(ctx context.Context) (*treasury.CycleReport, error)
}

// Server 负责暴露 REST 接口，供外部查询状态与驱动周期。
type Server struct {
	addr        string
	service     Service
	trigger     Trigger
	adminAPIKey string
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, service Service, trigger Trigger, adminAPIKey string) *Server {
	return &Server{addr: addr, service: service, trigger: trigger, adminAPIKey: adminAPIKey}
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler 组装全部路由。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/v1/health", instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("/api/v1/agent/status", instrument("agent_status", http.HandlerFunc(s.handleStatus)))
	mux.Handle("/api/v1/agent/chat", instrument("agent_chat", http.HandlerFunc(s.handleChat)))

	adminGuard := auth.APIKeyMiddleware(s.adminAPIKey)
	mux.Handle("/api/v1/admin/trigger", instrument("admin_trigger", adminGuard(http.HandlerFunc(s.handleTrigger))))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type activityEntry struct {
	Timestamp      int64   `json:"timestamp"`
	Action         string  `json:"action"`
	Amount         string  `json:"amount"`
	Reason         string  `json:"reason"`
	SentimentScore float64 `json:"sentimentScore"`
	APYSnapshot    float64 `json:"marketApySnapshot"`
	TxHash         *string `json:"txHash"`
}

func toActivity(records []mysql.CycleRecord) []activityEntry {
	entries := make([]activityEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, activityEntry{
			Timestamp:      record.Timestamp,
			Action:         record.Action,
			Amount:         record.Amount,
			Reason:         record.Reason,
			SentimentScore: record.SentimentScore,
			APYSnapshot:    record.APYSnapshot,
			TxHash:         record.TxHash,
		})
	}
	return entries
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.service == nil {
		http.Error(w, "Agent 未初始化", http.StatusServiceUnavailable)
		return
	}

	status, err := s.service.Status(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"walletAddress":  status.WalletAddress,
		"currentBalance": status.Balance,
		"lastActivity":   toActivity(status.LastActivity),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	if s.service == nil {
		http.Error(w, "Agent 未初始化", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}

	reply, err := s.service.Chat(r.Context(), req.Message)
	if err != nil {
		if xerrors.CodeOf(err) == xerrors.CodeInvalidArgument {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Message is required"})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"reply": reply})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	if s.trigger == nil {
		http.Error(w, "调度器未初始化", http.StatusServiceUnavailable)
		return
	}

	report, err := s.trigger.TriggerNow(r.Context())
	if err != nil {
		if xerrors.CodeOf(err) == xerrors.CodeCycleInFlight {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error": "a decision cycle is already in flight",
			})
			return
		}
		// 错误细节只进日志与告警, 不回传给调用方。
		logger.L().Error("手动触发周期失败", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "decision cycle failed",
		})
		return
	}

	response := map[string]any{
		"status":    "triggered",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"cycle": map[string]any{
			"cycleId": report.CycleID,
			"outcome": report.Outcome,
			"action":  report.Action,
			"amount":  report.Amount,
			"reason":  report.Reason,
			"apy":     report.APY,
			"txHash":  report.TxHash,
		},
	}
	writeJSON(w, http.StatusOK, response)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// instrument 记录每个接口的请求指标。
func instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.ObserveHTTPRequest(name, r.Method, recorder.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
