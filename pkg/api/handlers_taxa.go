package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/florakb/florakb/pkg/observability"
	"github.com/florakb/florakb/pkg/store"
)

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

// handleSearchTaxa runs a filtered, paginated taxa search. Results are
// cached under a key derived from the full parameter set.
func (s *Server) handleSearchTaxa(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := map[string]string{}
	for _, key := range []string{"family", "genus", "species", "taxon_name",
		"taxon_rank", "taxon_status", "powo_id", "limit", "offset"} {
		if v := q.Get(key); v != "" {
			params[key] = v
		}
	}

	key := s.keyer.SearchKey(r.URL.Path, params)
	if data, hit, err := s.cache.Get(r.Context(), key); err == nil && hit {
		observability.Cache().OnCacheHit(r.Context(), "search")
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "HIT")
		_, _ = w.Write(data)
		return
	}
	observability.Cache().OnCacheMiss(r.Context(), "search")

	limit, _ := strconv.Atoi(params["limit"])
	offset, _ := strconv.Atoi(params["offset"])
	filter := store.TaxonFilter{
		Family:      params["family"],
		Genus:       params["genus"],
		Species:     params["species"],
		TaxonName:   params["taxon_name"],
		TaxonRank:   params["taxon_rank"],
		TaxonStatus: params["taxon_status"],
		PowoID:      params["powo_id"],
		Limit:       limit,
		Offset:      offset,
	}

	names, total, err := s.store.SearchTaxa(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if filter.Limit <= 0 {
		filter.Limit = 10
	}

	resp := SearchResponse{Total: total, Limit: filter.Limit, Offset: filter.Offset,
		Items: make([]Taxon, len(names))}
	for i, n := range names {
		resp.Items[i] = taxonFromName(n)
	}

	body, err := json.Marshal(resp)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.cache.Set(r.Context(), key, body, s.cacheTTL); err == nil {
		observability.Cache().OnCacheSet(r.Context(), "search", len(body))
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (s *Server) handleGetTaxon(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		jsonError(w, "invalid taxon id", http.StatusBadRequest)
		return
	}
	n, err := s.store.TaxonByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taxonFromName(n))
}

func (s *Server) handleCreateTaxon(w http.ResponseWriter, r *http.Request) {
	var t Taxon
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if t.ID == 0 || t.TaxonName == "" {
		jsonError(w, "plant_name_id and taxon_name are required", http.StatusBadRequest)
		return
	}
	if err := s.store.CreateTaxon(r.Context(), t.toName()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleUpdateTaxon(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		jsonError(w, "invalid taxon id", http.StatusBadRequest)
		return
	}
	var t Taxon
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	t.ID = id
	if t.TaxonName == "" {
		jsonError(w, "taxon_name is required", http.StatusBadRequest)
		return
	}
	if err := s.store.UpdateTaxon(r.Context(), t.toName()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTaxon(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		jsonError(w, "invalid taxon id", http.StatusBadRequest)
		return
	}
	if err := s.store.DeleteTaxon(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDistributions(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		jsonError(w, "invalid taxon id", http.StatusBadRequest)
		return
	}
	dists, err := s.store.DistributionsByTaxon(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]DistributionItem, len(dists))
	for i, d := range dists {
		items[i] = distributionItem(d)
	}
	writeJSON(w, http.StatusOK, items)
}
