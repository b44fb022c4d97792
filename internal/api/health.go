package api

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// healthCheckTimeout bounds all probes together.
const healthCheckTimeout = 2 * time.Second

// HealthProbe checks one dependency of the agent.
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

// ProbeFunc adapts a function to HealthProbe.
type ProbeFunc struct {
	ProbeName string
	Fn        func(ctx context.Context) error
}

func (p ProbeFunc) Name() string                    { return p.ProbeName }
func (p ProbeFunc) Check(ctx context.Context) error { return p.Fn(ctx) }

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth runs every probe concurrently. Any failure, panic or timeout
// makes the response 503.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if len(s.HealthProbes) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{Status: "healthy"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	results := make([]chan error, len(s.HealthProbes))
	for i, probe := range s.HealthProbes {
		i, probe := i, probe
		results[i] = make(chan error, 1)
		go func() {
			var err error
			defer func() {
				if rvr := recover(); rvr != nil {
					err = fmt.Errorf("probe panicked: %v", rvr)
				}
				results[i] <- err
			}()
			err = probe.Check(ctx)
		}()
	}

	components := make(map[string]componentStatus, len(s.HealthProbes))
	healthy := true
	for i, probe := range s.HealthProbes {
		var status componentStatus
		select {
		case err := <-results[i]:
			if err != nil {
				status = componentStatus{Status: "unhealthy", Message: err.Error()}
			} else {
				status = componentStatus{Status: "healthy"}
			}
		case <-ctx.Done():
			status = componentStatus{Status: "unhealthy", Message: "health check timed out"}
		}
		components[probe.Name()] = status
		if status.Status != "healthy" {
			healthy = false
		}
	}

	resp := healthResponse{Status: "healthy", Components: components}
	if !healthy {
		resp.Status = "unhealthy"
		JSON(w, r, http.StatusServiceUnavailable, resp)
		return
	}
	JSON(w, r, http.StatusOK, resp)
}
