package server

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

type healthResponse struct {
	Status        string      `json:"status"`
	UptimeSeconds float64     `json:"uptime_seconds"`
	RSSBytes      uint64      `json:"rss_bytes,omitempty"`
	CPUPercent    float64     `json:"cpu_percent,omitempty"`
	Goroutines    int         `json:"goroutines"`
	Store         string      `json:"store,omitempty"`
	Turns         *turnCounts `json:"turns,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(s.started).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
	}
	if s.stats != nil {
		resp.Turns = s.stats.snapshot()
	}

	if proc, err := process.NewProcessWithContext(r.Context(), int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfoWithContext(r.Context()); err == nil {
			resp.RSSBytes = mem.RSS
		}
		if cpu, err := proc.CPUPercentWithContext(r.Context()); err == nil {
			resp.CPUPercent = cpu
		}
	} else {
		s.loggerFrom(r.Context()).Debug("process stats unavailable", "error", err)
	}

	status := http.StatusOK
	if s.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ping(ctx); err != nil {
			s.loggerFrom(r.Context()).Warn("store ping failed", "error", err)
			resp.Status = "degraded"
			resp.Store = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Store = "ok"
		}
	}
	writeJSON(w, status, resp)
}
