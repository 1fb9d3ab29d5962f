package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florakb/florakb/pkg/checklist"
	"github.com/florakb/florakb/pkg/errors"
	"github.com/florakb/florakb/pkg/tree"
)

func i64(v int64) *int64 { return &v }

// sampleNames is a small grass hierarchy: one family, two genera, two
// species under Poa, plus one synonym that never enters the tree.
func sampleNames() []checklist.Name {
	return []checklist.Name{
		{ID: 1, TaxonName: "Poaceae", TaxonRank: "Family", TaxonStatus: "Accepted",
			Family: "Poaceae", AcceptedID: i64(1)},
		{ID: 2, TaxonName: "Poa", TaxonRank: "Genus", TaxonStatus: "Accepted",
			Family: "Poaceae", Genus: "Poa", AcceptedID: i64(2), ParentID: i64(1)},
		{ID: 3, TaxonName: "Poa annua", TaxonRank: "Species", TaxonStatus: "Accepted",
			Family: "Poaceae", Genus: "Poa", Species: "annua", AcceptedID: i64(3), ParentID: i64(2)},
		{ID: 4, TaxonName: "Poa trivialis", TaxonRank: "Species", TaxonStatus: "Accepted",
			Family: "Poaceae", Genus: "Poa", Species: "trivialis", AcceptedID: i64(4), ParentID: i64(2)},
		{ID: 5, TaxonName: "Festuca", TaxonRank: "Genus", TaxonStatus: "Accepted",
			Family: "Poaceae", Genus: "Festuca", AcceptedID: i64(5), ParentID: i64(1)},
		{ID: 6, TaxonName: "Poa infirma", TaxonRank: "Species", TaxonStatus: "Synonym",
			Family: "Poaceae", Genus: "Poa", Species: "infirma", AcceptedID: i64(3)},
	}
}

func sampleDistributions() []checklist.Distribution {
	two := 12
	return []checklist.Distribution{
		{ID: 10, PlantID: 3, ContinentCode: 1, Continent: "EUROPE",
			RegionCode: &two, Region: "Northern Europe", AreaCode: "GRB", Area: "Great Britain"},
		{ID: 11, PlantID: 3, ContinentCode: 8, Continent: "SOUTHERN AMERICA",
			Introduced: true},
	}
}

// loadedStore opens an in-memory store with the sample checklist and its
// nested-set tree fully imported.
func loadedStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.Recreate(ctx))

	names := sampleNames()
	_, err = s.InsertNames(ctx, names)
	require.NoError(t, err)
	_, err = s.InsertDistributions(ctx, sampleDistributions())
	require.NoError(t, err)

	res, err := tree.Build(checklist.TreeSource(names),
		checklist.ColPlantNameID, checklist.ColParentNameID)
	require.NoError(t, err)
	require.NoError(t, s.InsertTree(ctx, res))
	return s
}

func TestTaxonByID(t *testing.T) {
	s := loadedStore(t)
	ctx := context.Background()

	n, err := s.TaxonByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Poa annua", n.TaxonName)
	assert.Equal(t, "annua", n.Species)
	require.NotNil(t, n.AcceptedID)
	assert.Equal(t, int64(3), *n.AcceptedID)
	require.NotNil(t, n.ParentID)
	assert.Equal(t, int64(2), *n.ParentID)

	_, err = s.TaxonByID(ctx, 999)
	assert.True(t, errors.Is(err, errors.ErrCodeTaxonNotFound))
}

func TestSearchTaxa(t *testing.T) {
	s := loadedStore(t)
	ctx := context.Background()

	got, total, err := s.SearchTaxa(ctx, TaxonFilter{Genus: "poa"})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, got, 4)

	got, total, err = s.SearchTaxa(ctx, TaxonFilter{Genus: "Poa", TaxonStatus: "Accepted"})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	for _, n := range got {
		assert.Equal(t, "Accepted", n.TaxonStatus)
	}

	// Pagination: total reflects all matches, the page is bounded.
	got, total, err = s.SearchTaxa(ctx, TaxonFilter{Family: "Poaceae", Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, int64(3), got[1].ID)

	_, total, err = s.SearchTaxa(ctx, TaxonFilter{Genus: "Quercus"})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCreateUpdateDeleteTaxon(t *testing.T) {
	s := loadedStore(t)
	ctx := context.Background()

	created := checklist.Name{ID: 7, TaxonName: "Festuca rubra", TaxonRank: "Species",
		TaxonStatus: "Accepted", Family: "Poaceae", Genus: "Festuca", Species: "rubra",
		AcceptedID: i64(7), ParentID: i64(5)}
	require.NoError(t, s.CreateTaxon(ctx, created))

	n, err := s.TaxonByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Festuca rubra", n.TaxonName)

	n.TaxonStatus = "Synonym"
	n.AcceptedID = i64(5)
	require.NoError(t, s.UpdateTaxon(ctx, n))
	n, err = s.TaxonByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Synonym", n.TaxonStatus)
	require.NotNil(t, n.AcceptedID)
	assert.Equal(t, int64(5), *n.AcceptedID)

	require.NoError(t, s.DeleteTaxon(ctx, 7))
	_, err = s.TaxonByID(ctx, 7)
	assert.True(t, errors.Is(err, errors.ErrCodeTaxonNotFound))

	err = s.UpdateTaxon(ctx, checklist.Name{ID: 999, TaxonName: "x"})
	assert.True(t, errors.Is(err, errors.ErrCodeTaxonNotFound))
	err = s.DeleteTaxon(ctx, 999)
	assert.True(t, errors.Is(err, errors.ErrCodeTaxonNotFound))
}

func TestDistributionsByTaxon(t *testing.T) {
	s := loadedStore(t)

	dists, err := s.DistributionsByTaxon(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, dists, 2)
	assert.Equal(t, "GRB", dists[0].AreaCode)
	require.NotNil(t, dists[0].RegionCode)
	assert.Equal(t, 12, *dists[0].RegionCode)
	assert.True(t, dists[1].Introduced)
	assert.Nil(t, dists[1].RegionCode)
}

func TestTreeQueries(t *testing.T) {
	s := loadedStore(t)
	ctx := context.Background()

	root, err := s.TreeRoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, root.Position)
	assert.Equal(t, int64(1), root.PlantNameID)
	assert.Equal(t, "Poaceae", root.TaxonName)

	// Subtree of Poa covers both species; preorder positions are contiguous.
	sub, err := s.Subtree(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, sub, 3)
	assert.Equal(t, int64(2), sub[0].PlantNameID)
	assert.Equal(t, int64(3), sub[1].PlantNameID)
	assert.Equal(t, int64(4), sub[2].PlantNameID)

	// Depth bound trims the species level.
	sub, err = s.Subtree(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, sub, 3)
	for _, n := range sub {
		assert.LessOrEqual(t, n.Depth, 1)
	}

	// A leaf's subtree is the leaf itself.
	sub, err = s.Subtree(ctx, 4, 0)
	require.NoError(t, err)
	require.Len(t, sub, 1)
	assert.True(t, sub[0].IsLeaf)
	assert.Nil(t, sub[0].RightBound)

	kids, err := s.Children(ctx, 1)
	require.NoError(t, err)
	require.Len(t, kids, 2)
	assert.Equal(t, int64(2), kids[0].PlantNameID)
	assert.Equal(t, int64(5), kids[1].PlantNameID)

	anc, err := s.Ancestors(ctx, 3)
	require.NoError(t, err)
	require.Len(t, anc, 2)
	assert.Equal(t, int64(1), anc[0].PlantNameID)
	assert.Equal(t, int64(2), anc[1].PlantNameID)

	// Synonyms never enter the tree.
	_, err = s.TreeNodeByTaxon(ctx, 6)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestInsertTreeSyntheticRoot(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.CreateTables(ctx))

	// Two disconnected trees force a synthetic root above both.
	names := []checklist.Name{
		{ID: 1, TaxonName: "Poaceae", AcceptedID: i64(1)},
		{ID: 2, TaxonName: "Poa", AcceptedID: i64(2), ParentID: i64(1)},
		{ID: 3, TaxonName: "Fagaceae", AcceptedID: i64(3)},
		{ID: 4, TaxonName: "Quercus", AcceptedID: i64(4), ParentID: i64(3)},
	}
	_, err = s.InsertNames(ctx, names)
	require.NoError(t, err)

	res, err := tree.Build(checklist.TreeSource(names),
		checklist.ColPlantNameID, checklist.ColParentNameID)
	require.NoError(t, err)
	require.True(t, res.SyntheticRoot)
	require.NoError(t, s.InsertTree(ctx, res))

	// The placeholder taxon backs the synthetic node.
	root, err := s.TreeRoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(res.Root), root.PlantNameID)
	assert.Equal(t, "Root", root.TaxonName)

	kids, err := s.Children(ctx, int64(res.Root))
	require.NoError(t, err)
	require.Len(t, kids, 2)
	assert.Equal(t, int64(1), kids[0].PlantNameID)
	assert.Equal(t, int64(3), kids[1].PlantNameID)
}

func TestEachAcceptedTaxon(t *testing.T) {
	s := loadedStore(t)

	var ids []int64
	err := s.EachAcceptedTaxon(context.Background(), func(n checklist.Name) error {
		ids = append(ids, n.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids)
}

func TestRecreateResets(t *testing.T) {
	s := loadedStore(t)
	ctx := context.Background()

	require.NoError(t, s.Recreate(ctx))
	_, total, err := s.SearchTaxa(ctx, TaxonFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}
