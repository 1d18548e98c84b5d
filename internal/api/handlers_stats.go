package api

import (
	"net/http"

	"github.com/dgallion1/docannot/internal/resource"
)

func (s *Server) handleProcessingStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"processing_seconds": s.registry.ProcessingSeconds(),
		"languages":          s.registry.Languages(),
		"supported":          resource.Supported(),
		"failed":             s.registry.Failed(),
		"stages":             s.registry.StageLatency(),
		"queue_depth":        s.orchestrator.QueueDepth(),
	})
}
