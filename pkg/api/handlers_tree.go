package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/florakb/florakb/pkg/observability"
)

// treeCached serves a tree query through the response cache, keyed by
// operation, taxon id and depth bound. Tree reads dominate API traffic and
// the table only changes on a full rebuild, so TTL-bounded staleness is fine.
func (s *Server) treeCached(w http.ResponseWriter, r *http.Request, op string, id int64, depth int, fetch func() (any, error)) {
	ctx := r.Context()
	key := s.keyer.TreeKey(op, id, depth)
	if data, hit, err := s.cache.Get(ctx, key); err == nil && hit {
		observability.Cache().OnCacheHit(ctx, "tree")
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "HIT")
		_, _ = w.Write(data)
		return
	}
	observability.Cache().OnCacheMiss(ctx, "tree")

	v, err := fetch()
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.cache.Set(ctx, key, body, s.cacheTTL); err == nil {
		observability.Cache().OnCacheSet(ctx, "tree", len(body))
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (s *Server) handleTreeRoot(w http.ResponseWriter, r *http.Request) {
	s.treeCached(w, r, "root", 0, 0, func() (any, error) {
		node, err := s.store.TreeRoot(r.Context())
		if err != nil {
			return nil, err
		}
		return treeNodeItem(node), nil
	})
}

// handleSubtree returns a taxon's node and all descendants in preorder.
// An optional depth parameter bounds how far below the node results go.
func (s *Server) handleSubtree(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		jsonError(w, "invalid taxon id", http.StatusBadRequest)
		return
	}
	depth := 0
	if v := r.URL.Query().Get("depth"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 0 {
			jsonError(w, "depth must be a non-negative integer", http.StatusBadRequest)
			return
		}
		depth = d
	}

	s.treeCached(w, r, "subtree", id, depth, func() (any, error) {
		nodes, err := s.store.Subtree(r.Context(), id, depth)
		if err != nil {
			return nil, err
		}
		return treeNodeItems(nodes), nil
	})
}

func (s *Server) handleAncestors(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		jsonError(w, "invalid taxon id", http.StatusBadRequest)
		return
	}
	s.treeCached(w, r, "ancestors", id, 0, func() (any, error) {
		nodes, err := s.store.Ancestors(r.Context(), id)
		if err != nil {
			return nil, err
		}
		return treeNodeItems(nodes), nil
	})
}

func (s *Server) handleChildren(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		jsonError(w, "invalid taxon id", http.StatusBadRequest)
		return
	}
	s.treeCached(w, r, "children", id, 0, func() (any, error) {
		nodes, err := s.store.Children(r.Context(), id)
		if err != nil {
			return nil, err
		}
		return treeNodeItems(nodes), nil
	})
}
