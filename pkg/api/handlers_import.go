package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/florakb/florakb/pkg/pipeline"
)

// handleImport runs a full checklist import synchronously. Imports rebuild
// every table, so the caller should expect the request to take a while on
// real checklist data.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		jsonError(w, "import is not enabled on this server", http.StatusNotImplemented)
		return
	}

	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	result, err := s.importer.Execute(r.Context(), pipeline.Options{
		Force:             req.Force,
		SkipDistributions: req.SkipDistributions,
		SkipTree:          req.SkipTree,
		DeleteFiles:       req.DeleteFiles,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ImportResponse{
		Names:         result.Stats.Names,
		Distributions: result.Stats.Distributions,
		TreeNodes:     result.Stats.TreeNodes,
		Root:          int64(result.Root),
		SyntheticRoot: result.SyntheticRoot,
		DataDir:       result.DataDir,
	})
}
