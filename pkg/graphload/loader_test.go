package graphload

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florakb/florakb/pkg/checklist"
)

type fakeSource struct {
	names []checklist.Name
	dists []checklist.Distribution
}

func (f *fakeSource) EachAcceptedTaxon(_ context.Context, fn func(checklist.Name) error) error {
	for _, n := range f.names {
		if !n.IsAccepted() {
			continue
		}
		if err := fn(n); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeSource) EachDistribution(_ context.Context, fn func(checklist.Distribution) error) error {
	for _, d := range f.dists {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

func i64(v int64) *int64 { return &v }
func ip(v int) *int      { return &v }

func TestChunk(t *testing.T) {
	rows := make([]map[string]any, 5)
	batches := chunk(rows, 2)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[2], 1)

	assert.Nil(t, chunk(nil, 2))
}

func TestPlantRows(t *testing.T) {
	src := &fakeSource{names: []checklist.Name{
		{ID: 1, TaxonName: "Poaceae", AcceptedID: i64(1), IpniID: "30000009-2"},
		{ID: 2, TaxonName: "Poa annua", AcceptedID: i64(2), ParentID: i64(1)},
		{ID: 3, TaxonName: "Poa infirma", AcceptedID: i64(2)},
	}}

	nodes, parents, err := plantRows(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, plantURI(1), nodes[0]["uri"])
	assert.Equal(t, "Poaceae", nodes[0]["taxon_name"])
	assert.Equal(t, "30000009-2", nodes[0]["ipni_id"])

	require.Len(t, parents, 1)
	assert.Equal(t, plantURI(2), parents[0]["uri"])
	assert.Equal(t, plantURI(1), parents[0]["parent_uri"])
}

func TestGeoRows(t *testing.T) {
	src := &fakeSource{
		names: []checklist.Name{{ID: 2, TaxonName: "Poa annua", AcceptedID: i64(2)}},
		dists: []checklist.Distribution{
			{ID: 10, PlantID: 2, ContinentCode: 1, Continent: "EUROPE",
				RegionCode: ip(12), Region: "Northern Europe", AreaCode: "GRB", Area: "Great Britain"},
			{ID: 11, PlantID: 2, ContinentCode: 8, Continent: "SOUTHERN AMERICA"},
			{ID: 12, PlantID: 2, ContinentCode: 1, Continent: "EUROPE",
				RegionCode: ip(12), Region: "Northern Europe", AreaCode: "IRE", Area: "Ireland", Extinct: true},
			{ID: 13, PlantID: 99, ContinentCode: 1, Continent: "EUROPE"}, // not accepted
		},
	}

	groups, links, err := geoRows(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Len(t, groups[0].rows, 2) // continents 1 and 8
	assert.Len(t, groups[1].rows, 1) // region 12
	assert.Len(t, groups[2].rows, 2) // areas GRB and IRE (hierarchy keeps extinct rows)

	// Links: GRB at area level, continent 8 directly; extinct and
	// non-accepted rows contribute no link.
	require.Len(t, links, 2)
	assert.Equal(t, plantURI(2), links[0]["uri"])
}
