package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florakb/florakb/pkg/checklist"
	"github.com/florakb/florakb/pkg/errors"
	"github.com/florakb/florakb/pkg/pipeline"
	"github.com/florakb/florakb/pkg/store"
	"github.com/florakb/florakb/pkg/tree"
)

func i64(v int64) *int64 { return &v }
func ip(v int) *int      { return &v }

// fakeStore is an in-memory Store for handler tests.
type fakeStore struct {
	names map[int64]checklist.Name
	dists map[int64][]checklist.Distribution
	nodes []store.TreeNode
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		names: map[int64]checklist.Name{
			1: {ID: 1, TaxonName: "Poaceae", TaxonRank: "Family", TaxonStatus: "Accepted",
				Family: "Poaceae", AcceptedID: i64(1)},
			2: {ID: 2, TaxonName: "Poa", TaxonRank: "Genus", TaxonStatus: "Accepted",
				Family: "Poaceae", Genus: "Poa", AcceptedID: i64(2), ParentID: i64(1)},
			3: {ID: 3, TaxonName: "Poa annua", TaxonRank: "Species", TaxonStatus: "Accepted",
				Family: "Poaceae", Genus: "Poa", Species: "annua", AcceptedID: i64(3), ParentID: i64(2)},
		},
		dists: map[int64][]checklist.Distribution{
			3: {{ID: 10, PlantID: 3, ContinentCode: 1, Continent: "EUROPE",
				RegionCode: ip(12), Region: "Northern Europe", AreaCode: "GRB", Area: "Great Britain"}},
		},
		nodes: []store.TreeNode{
			{Position: 1, PlantNameID: 1, Depth: 0, RightBound: ip(4), TaxonName: "Poaceae"},
			{Position: 2, ParentPosition: ip(1), PlantNameID: 2, Depth: 1, RightBound: ip(4), TaxonName: "Poa"},
			{Position: 3, ParentPosition: ip(2), PlantNameID: 3, Depth: 2, IsLeaf: true, TaxonName: "Poa annua"},
		},
	}
}

func (f *fakeStore) TaxonByID(_ context.Context, id int64) (checklist.Name, error) {
	n, ok := f.names[id]
	if !ok {
		return n, errors.New(errors.ErrCodeTaxonNotFound, "taxon %d not found", id)
	}
	return n, nil
}

func (f *fakeStore) SearchTaxa(_ context.Context, filter store.TaxonFilter) ([]checklist.Name, int, error) {
	var matched []checklist.Name
	for _, n := range f.names {
		if filter.Genus != "" && !strings.EqualFold(n.Genus, filter.Genus) {
			continue
		}
		if filter.TaxonStatus != "" && n.TaxonStatus != filter.TaxonStatus {
			continue
		}
		matched = append(matched, n)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	if filter.Offset < len(matched) {
		matched = matched[filter.Offset:]
	} else {
		matched = nil
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (f *fakeStore) CreateTaxon(_ context.Context, n checklist.Name) error {
	f.names[n.ID] = n
	return nil
}

func (f *fakeStore) UpdateTaxon(_ context.Context, n checklist.Name) error {
	if _, ok := f.names[n.ID]; !ok {
		return errors.New(errors.ErrCodeTaxonNotFound, "taxon %d not found", n.ID)
	}
	f.names[n.ID] = n
	return nil
}

func (f *fakeStore) DeleteTaxon(_ context.Context, id int64) error {
	if _, ok := f.names[id]; !ok {
		return errors.New(errors.ErrCodeTaxonNotFound, "taxon %d not found", id)
	}
	delete(f.names, id)
	return nil
}

func (f *fakeStore) DistributionsByTaxon(_ context.Context, id int64) ([]checklist.Distribution, error) {
	return f.dists[id], nil
}

func (f *fakeStore) TreeRoot(context.Context) (store.TreeNode, error) {
	return f.nodes[0], nil
}

func (f *fakeStore) nodeByTaxon(id int64) (store.TreeNode, error) {
	for _, n := range f.nodes {
		if n.PlantNameID == id {
			return n, nil
		}
	}
	return store.TreeNode{}, errors.New(errors.ErrCodeNotFound, "tree node not found")
}

func (f *fakeStore) Subtree(_ context.Context, id int64, maxDepth int) ([]store.TreeNode, error) {
	node, err := f.nodeByTaxon(id)
	if err != nil {
		return nil, err
	}
	lo, hi := node.Span()
	var out []store.TreeNode
	for _, n := range f.nodes {
		if n.Position >= lo && n.Position < hi {
			if maxDepth > 0 && n.Depth > node.Depth+maxDepth {
				continue
			}
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) Ancestors(_ context.Context, id int64) ([]store.TreeNode, error) {
	node, err := f.nodeByTaxon(id)
	if err != nil {
		return nil, err
	}
	var out []store.TreeNode
	for _, n := range f.nodes {
		if n.Position < node.Position && n.RightBound != nil && *n.RightBound > node.Position {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) Children(_ context.Context, id int64) ([]store.TreeNode, error) {
	node, err := f.nodeByTaxon(id)
	if err != nil {
		return nil, err
	}
	var out []store.TreeNode
	for _, n := range f.nodes {
		if n.ParentPosition != nil && *n.ParentPosition == node.Position {
			out = append(out, n)
		}
	}
	return out, nil
}

type fakeImporter struct {
	opts   pipeline.Options
	called bool
}

func (f *fakeImporter) Execute(_ context.Context, opts pipeline.Options) (*pipeline.Result, error) {
	f.called = true
	f.opts = opts
	return &pipeline.Result{
		Stats: pipeline.Stats{Names: 3, Distributions: 1, TreeNodes: 3},
		Root:  tree.NodeID(1),
	}, nil
}

// memCache is a trivial in-memory cache for hit/miss assertions.
type memCache struct {
	data map[string][]byte
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	c.data[key] = data
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	delete(c.data, key)
	return nil
}

func (c *memCache) Close() error { return nil }

func newTestServer(t *testing.T, opts Options) (*Server, *fakeStore, *fakeImporter) {
	t.Helper()
	st := newFakeStore()
	imp := &fakeImporter{}
	return NewServer(st, imp, opts), st, imp
}

func get(t *testing.T, srv http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, Options{})
	rec := get(t, srv, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestBasicAuth(t *testing.T) {
	srv, _, _ := newTestServer(t, Options{User: "admin", Password: "secret"})

	rec := get(t, srv, "/taxa/1")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/taxa/1", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/taxa/1", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays public.
	assert.Equal(t, http.StatusOK, get(t, srv, "/health").Code)
}

func TestGetTaxon(t *testing.T) {
	srv, _, _ := newTestServer(t, Options{})

	rec := get(t, srv, "/taxa/3")
	require.Equal(t, http.StatusOK, rec.Code)
	var got Taxon
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Poa annua", got.TaxonName)
	require.NotNil(t, got.ParentID)
	assert.Equal(t, int64(2), *got.ParentID)

	rec = get(t, srv, "/taxa/999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, string(errors.ErrCodeTaxonNotFound), e.Code)

	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/taxa/abc").Code)
}

func TestSearchTaxa(t *testing.T) {
	srv, _, _ := newTestServer(t, Options{})

	rec := get(t, srv, "/taxa?genus=Poa&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, int64(2), resp.Items[0].ID)
}

func TestSearchCaching(t *testing.T) {
	mc := &memCache{data: map[string][]byte{}}
	srv, _, _ := newTestServer(t, Options{Cache: mc, CacheTTL: time.Minute})

	rec := get(t, srv, "/taxa?genus=Poa")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
	first := rec.Body.String()

	rec = get(t, srv, "/taxa?genus=Poa")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, first, rec.Body.String())

	// Different parameters miss.
	rec = get(t, srv, "/taxa?genus=Poa&taxon_status=Accepted")
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestCreateUpdateDelete(t *testing.T) {
	srv, st, _ := newTestServer(t, Options{})

	body, _ := json.Marshal(Taxon{ID: 5, TaxonName: "Festuca", TaxonRank: "Genus"})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/taxa", bytes.NewReader(body)))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, st.names, int64(5))

	body, _ = json.Marshal(Taxon{TaxonName: "Festuca rubra"})
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/taxa/5", bytes.NewReader(body)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Festuca rubra", st.names[5].TaxonName)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/taxa/5", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotContains(t, st.names, int64(5))

	// Missing required fields.
	body, _ = json.Marshal(Taxon{ID: 6})
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/taxa", bytes.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDistributions(t *testing.T) {
	srv, _, _ := newTestServer(t, Options{})
	rec := get(t, srv, "/taxa/3/distributions")
	require.Equal(t, http.StatusOK, rec.Code)
	var items []DistributionItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "GRB", items[0].AreaCode)
}

func TestTreeEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t, Options{})

	rec := get(t, srv, "/tree/root")
	require.Equal(t, http.StatusOK, rec.Code)
	var root TreeNodeItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &root))
	assert.Equal(t, 1, root.Position)

	rec = get(t, srv, "/tree/2/subtree")
	require.Equal(t, http.StatusOK, rec.Code)
	var nodes []TreeNodeItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nodes))
	assert.Len(t, nodes, 2)

	rec = get(t, srv, "/tree/3/ancestors")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nodes))
	assert.Len(t, nodes, 2)

	rec = get(t, srv, "/tree/1/children")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nodes))
	assert.Len(t, nodes, 1)

	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/tree/2/subtree?depth=-1").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/tree/999/subtree").Code)
}

func TestTreeCaching(t *testing.T) {
	mc := &memCache{data: map[string][]byte{}}
	srv, _, _ := newTestServer(t, Options{Cache: mc, CacheTTL: time.Minute})

	rec := get(t, srv, "/tree/2/subtree")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
	first := rec.Body.String()

	rec = get(t, srv, "/tree/2/subtree")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, first, rec.Body.String())

	// A depth bound is part of the key.
	rec = get(t, srv, "/tree/2/subtree?depth=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))

	// Each operation has its own key space.
	rec = get(t, srv, "/tree/3/ancestors")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
	rec = get(t, srv, "/tree/3/ancestors")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	rec = get(t, srv, "/tree/root")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = get(t, srv, "/tree/root")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	// Failed lookups are never cached.
	entries := len(mc.data)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/tree/999/subtree").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/tree/999/subtree").Code)
	assert.Len(t, mc.data, entries)
}

func TestImport(t *testing.T) {
	srv, _, imp := newTestServer(t, Options{})

	body, _ := json.Marshal(ImportRequest{Force: true, SkipDistributions: true})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/import", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.True(t, imp.called)
	assert.True(t, imp.opts.Force)
	assert.True(t, imp.opts.SkipDistributions)

	var resp ImportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Names)
	assert.Equal(t, int64(1), resp.Root)
}
