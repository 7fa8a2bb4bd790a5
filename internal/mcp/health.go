package mcp

import (
	"encoding/json"
	"math/big"
	"net/http"
	"time"

	"github.com/skillforge/skillbridge/internal/mcp/hooks"
)

// Health is the body of GET /healthz.
type Health struct {
	Status       string        `json:"status"`
	Server       string        `json:"server"`
	Version      string        `json:"version"`
	LastSync     *time.Time    `json:"lastSync,omitempty"`
	ActiveSkills int           `json:"activeSkills"`
	KnownTools   int           `json:"knownTools"`
	Metrics      hooks.Metrics `json:"metrics"`
}

// Health reports "ok" once a sync pass has completed and "starting" before.
func (s *Server) Health() Health {
	h := Health{
		Status:  "starting",
		Server:  s.config.ServerName,
		Version: s.config.ServerVersion,
		Metrics: s.metrics.Snapshot(),
	}

	if src := s.statusSource(); src != nil {
		h.ActiveSkills = len(src.Active())
		h.KnownTools = src.KnownCount()
		if last := src.LastSync(); !last.IsZero() {
			h.Status = "ok"
			h.LastSync = &last
		}
	}
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.Health()

	code := http.StatusOK
	if h.Status != "ok" {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(h)
}

func intString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
