package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"locksync/internal/models"
)

// handleIndex returns basic service information
// GET / - Returns service info and available endpoints
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	info := map[string]interface{}{
		"service":     "locksync",
		"version":     "1.0.0",
		"description": "Client-side synchronization layer for on-chain membership locks",
		"endpoints": map[string]string{
			"GET /":                     "This page - Service information",
			"GET /health":               "Health check endpoint",
			"GET /metrics":              "Prometheus metrics for monitoring",
			"GET /locks":                "List materialized locks (supports ?limit=, ?offset=)",
			"GET /locks/{address}":      "Get one lock's materialized state",
			"GET /locks/{address}/keys": "List the keys held on a lock",
			"GET /transactions/{hash}":  "Get the lifecycle snapshot of a tracked transaction",
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}

// handleHealth returns health status
// GET /health - Health check for monitoring systems
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "locksync",
		"locks":     s.view.LockCount(),
		"keys":      s.view.KeyCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleMetrics returns Prometheus metrics
// GET /metrics - Prometheus scraping endpoint
func (s *Server) handleMetrics() http.Handler {
	return promhttp.Handler()
}

// handleListLocks lists materialized locks with pagination
// GET /locks?limit=50&offset=0
func (s *Server) handleListLocks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 50 // default
	if limitStr := query.Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	offset := 0
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	all := s.view.Locks()
	total := len(all)

	page := all[min(offset, total):]
	if len(page) > limit {
		page = page[:limit]
	}

	response := models.LockListResponse{
		Locks:    page,
		Total:    total,
		Page:     (offset / limit) + 1,
		PageSize: limit,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleGetLock returns one lock's materialized state
// GET /locks/{address}
func (s *Server) handleGetLock(w http.ResponseWriter, r *http.Request) {
	address, ok := s.lockAddress(w, r)
	if !ok {
		return
	}

	lock, found := s.view.Lock(address)
	if !found {
		s.sendError(w, "Lock not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lock)
}

// handleGetLockKeys lists the keys held on a lock
// GET /locks/{address}/keys
func (s *Server) handleGetLockKeys(w http.ResponseWriter, r *http.Request) {
	address, ok := s.lockAddress(w, r)
	if !ok {
		return
	}

	keys := s.view.Keys(address)

	response := models.KeyListResponse{
		Lock:  address.Hex(),
		Keys:  keys,
		Total: len(keys),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleGetTransaction returns the lifecycle snapshot of a tracked hash
// GET /transactions/{hash}
func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/transactions/")
	if raw == "" || strings.Contains(raw, "/") {
		s.sendError(w, "Transaction hash required", http.StatusBadRequest)
		return
	}
	if !strings.HasPrefix(raw, "0x") || len(raw) != 66 {
		s.sendError(w, "Malformed transaction hash", http.StatusBadRequest)
		return
	}

	tx, found := s.view.Transaction(common.HexToHash(raw))
	if !found {
		s.sendError(w, "Transaction not tracked", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tx)
}

// lockAddress extracts and validates the lock address path segment
func (s *Server) lockAddress(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	path := strings.TrimPrefix(r.URL.Path, "/locks/")
	raw := strings.Split(path, "/")[0]

	if raw == "" {
		s.sendError(w, "Lock address required", http.StatusBadRequest)
		return common.Address{}, false
	}
	if !common.IsHexAddress(raw) {
		s.sendError(w, "Malformed lock address", http.StatusBadRequest)
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// sendError sends a JSON error response
func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
}
