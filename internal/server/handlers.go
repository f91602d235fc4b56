package server

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"device-monitor/internal/model"
)

const (
	defaultHistoryHours = 24
	maxHistoryHours     = 168 // one week

	defaultAnomalyLimit = 50
	defaultChatLimit    = 50
	maxListLimit        = 500
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"device_id":      s.deviceID,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"timestamp":      time.Now().UTC(),
	})
}

func (s *Server) handleLatestMetrics(w http.ResponseWriter, r *http.Request) {
	agg, err := s.latestAggregate(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read latest aggregate")
		respondError(w, http.StatusInternalServerError, "failed to read metrics")
		return
	}
	if agg == nil {
		respondError(w, http.StatusNotFound, "no metrics collected yet")
		return
	}
	respondJSON(w, http.StatusOK, agg)
}

func (s *Server) handleMetricsHistory(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", defaultHistoryHours)
	if hours < 1 {
		hours = 1
	}
	if hours > maxHistoryHours {
		hours = maxHistoryHours
	}

	history, err := s.store.AggregateHistory(r.Context(), s.deviceID, hours)
	if err != nil {
		s.logger.Error().Err(err).Int("hours", hours).Msg("failed to read metrics history")
		respondError(w, http.StatusInternalServerError, "failed to read metrics history")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"hours": hours,
		"count": len(history),
		"data":  history,
	})
}

func (s *Server) handleProcesses(w http.ResponseWriter, r *http.Request) {
	procs, err := s.host.Processes()
	if err != nil {
		s.logger.Error().Err(err).Msg("process snapshot failed")
		respondError(w, http.StatusInternalServerError, "failed to read processes")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":     len(procs),
		"processes": procs,
	})
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	limit := clampLimit(queryInt(r, "limit", defaultAnomalyLimit))

	anomalies, err := s.store.RecentAnomalies(r.Context(), s.deviceID, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read anomalies")
		respondError(w, http.StatusInternalServerError, "failed to read anomalies")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":     len(anomalies),
		"anomalies": anomalies,
	})
}

func (s *Server) handleStatusLog(w http.ResponseWriter, r *http.Request) {
	entries := s.statusLog.Entries()
	respondJSON(w, http.StatusOK, map[string]any{
		"count":   len(entries),
		"entries": entries,
	})
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.EnabledRules(r.Context(), s.deviceID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read rules")
		respondError(w, http.StatusInternalServerError, "failed to read rules")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count": len(rules),
		"rules": rules,
	})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var rule model.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if rule.Name == "" || rule.Condition == "" {
		respondError(w, http.StatusBadRequest, "name and condition are required")
		return
	}
	if !rule.Severity.Valid() {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid severity %q", rule.Severity))
		return
	}
	if rule.Comparison == "" {
		rule.Comparison = model.ComparisonGT
	}
	rule.Enabled = true
	rule.DeviceID = s.deviceID

	id, err := s.store.InsertRule(r.Context(), &rule)
	if err != nil {
		s.logger.Error().Err(err).Str("rule", rule.Name).Msg("failed to insert rule")
		respondError(w, http.StatusInternalServerError, "failed to store rule")
		return
	}
	rule.ID = id

	s.logger.Info().Str("rule", rule.Name).Str("condition", rule.Condition).Msg("rule created")
	respondJSON(w, http.StatusCreated, &rule)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	agg, err := s.latestAggregate(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("health check failed to read aggregate")
		respondError(w, http.StatusInternalServerError, "failed to read metrics")
		return
	}

	message := "✅ System operational"
	if s.assistant != nil {
		message = s.assistant.HealthCheckMessage(r.Context(), agg)
	}

	resp := map[string]any{
		"status":    "ok",
		"message":   message,
		"timestamp": time.Now().UTC(),
	}
	if agg != nil {
		resp["metrics"] = agg
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", defaultHistoryHours)
	if hours < 1 {
		hours = 1
	}
	if hours > maxHistoryHours {
		hours = maxHistoryHours
	}

	history, err := s.store.AggregateHistory(r.Context(), s.deviceID, hours)
	if err != nil {
		s.logger.Error().Err(err).Msg("CSV export failed to read history")
		respondError(w, http.StatusInternalServerError, "failed to read metrics history")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=metrics-%s.csv", time.Now().Format("2006-01-02")))

	cw := csv.NewWriter(w)
	cw.Write([]string{
		"created_at", "cpu_percent", "memory_percent", "memory_mb",
		"disk_percent", "network_in_mbps", "network_out_mbps",
		"load_avg_1min", "swap_percent", "p95_latency", "error_rate",
	})
	for _, agg := range history {
		cw.Write([]string{
			agg.CreatedAt.Format(time.RFC3339),
			formatFloat(agg.CPUPercent),
			formatFloat(agg.MemoryPercent),
			formatFloat(agg.MemoryMB),
			formatFloat(agg.DiskPercent),
			formatFloat(agg.NetworkInMbps),
			formatFloat(agg.NetworkOutMbps),
			formatFloat(agg.LoadAvg1Min),
			formatFloat(agg.SwapPercent),
			formatFloat(agg.P95Latency),
			formatFloat(agg.ErrorRate),
		})
	}
	cw.Flush()
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", defaultHistoryHours)
	if hours < 1 {
		hours = 1
	}
	if hours > maxHistoryHours {
		hours = maxHistoryHours
	}

	history, err := s.store.AggregateHistory(r.Context(), s.deviceID, hours)
	if err != nil {
		s.logger.Error().Err(err).Msg("Excel export failed to read history")
		respondError(w, http.StatusInternalServerError, "failed to read metrics history")
		return
	}
	anomalies, err := s.store.RecentAnomalies(r.Context(), s.deviceID, maxListLimit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Excel export failed to read anomalies")
		respondError(w, http.StatusInternalServerError, "failed to read anomalies")
		return
	}

	f, err := s.exporter.Build(s.deviceID, history, anomalies)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to build Excel report")
		respondError(w, http.StatusInternalServerError, "failed to build report")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=metrics-%s.xlsx", time.Now().Format("2006-01-02")))
	if _, err := f.WriteTo(w); err != nil {
		s.logger.Error().Err(err).Msg("failed to stream Excel report")
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.assistant == nil || !s.assistant.Enabled() {
		respondError(w, http.StatusServiceUnavailable, "AI assistant is not configured")
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	agg, err := s.latestAggregate(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("chat failed to read aggregate")
		respondError(w, http.StatusInternalServerError, "failed to read metrics")
		return
	}
	if agg == nil {
		agg = &model.Aggregate{DeviceID: s.deviceID}
	}

	answer, err := s.assistant.Chat(r.Context(), req.Message, agg)
	if err != nil {
		s.logger.Error().Err(err).Msg("chat completion failed")
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	msg := &model.ChatMessage{
		CreatedAt:     time.Now().UTC(),
		DeviceID:      s.deviceID,
		Message:       req.Message,
		Response:      answer,
		CPUPercent:    agg.CPUPercent,
		MemoryPercent: agg.MemoryPercent,
	}
	if err := s.store.InsertChatMessage(r.Context(), msg); err != nil {
		// The exchange already happened; history is best-effort.
		s.logger.Warn().Err(err).Msg("failed to persist chat message")
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"response":  answer,
		"timestamp": msg.CreatedAt,
	})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	limit := clampLimit(queryInt(r, "limit", defaultChatLimit))

	history, err := s.store.ChatHistory(r.Context(), s.deviceID, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read chat history")
		respondError(w, http.StatusInternalServerError, "failed to read chat history")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":    len(history),
		"messages": history,
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
