// Package graphload pushes the checklist into Neo4j.
//
// The graph mirrors the RDF export: every node carries a uri property unique
// across the database (n10s convention), plants are labelled Plant plus the
// shared DbWCVP label, and the TDWG hierarchy is labelled Continent, Region
// and Area plus DbTdwgLocation. Re-imports first delete by those shared
// labels so unrelated graphs in the same database survive.
package graphload

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/florakb/florakb/pkg/checklist"
	"github.com/florakb/florakb/pkg/errors"
	"github.com/florakb/florakb/pkg/observability"
	"github.com/florakb/florakb/pkg/rdf"
)

// DefaultBatchSize is the number of rows per UNWIND write.
const DefaultBatchSize = 1000

// Stats summarizes one load.
type Stats struct {
	Plants     int
	ParentRels int
	Locations  int
	TdwgNodes  int
}

// Loader writes checklist graphs into Neo4j.
type Loader struct {
	driver    neo4j.DriverWithContext
	dbName    string
	BatchSize int
	Logger    *log.Logger
}

// New connects to Neo4j and verifies connectivity.
func New(uri, user, password, dbName string, logger *log.Logger) (*Loader, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "create neo4j driver")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect to neo4j at %s", uri)
	}

	if logger == nil {
		logger = log.Default()
	}
	return &Loader{driver: driver, dbName: dbName, BatchSize: DefaultBatchSize, Logger: logger}, nil
}

func (l *Loader) Close(ctx context.Context) error {
	return l.driver.Close(ctx)
}

// Load replaces the checklist graph with the current store contents.
func (l *Loader) Load(ctx context.Context, src rdf.Source) (Stats, error) {
	start := time.Now()
	stats, err := l.load(ctx, src)
	observability.Import().OnExportComplete(ctx, "neo4j", time.Since(start), err)
	return stats, err
}

func (l *Loader) load(ctx context.Context, src rdf.Source) (Stats, error) {
	var stats Stats

	for _, label := range []string{rdf.LabelBasicNode, rdf.LabelTdwgNode} {
		if err := l.deleteLabel(ctx, label); err != nil {
			return stats, err
		}
	}
	if err := l.ensureConstraint(ctx); err != nil {
		return stats, err
	}

	plants, parents, err := plantRows(ctx, src)
	if err != nil {
		return stats, err
	}
	if err := l.runBatched(ctx, plants, `
		UNWIND $rows AS row
		MERGE (p:Resource {uri: row.uri})
		SET p:`+rdf.LabelPlant+`:`+rdf.LabelBasicNode+`,
			p.taxon_name = row.taxon_name,
			p.ipni_id = row.ipni_id,
			p.powo_id = row.powo_id`); err != nil {
		return stats, err
	}
	stats.Plants = len(plants)

	if err := l.runBatched(ctx, parents, `
		UNWIND $rows AS row
		MATCH (c:Resource {uri: row.uri})
		MATCH (p:Resource {uri: row.parent_uri})
		MERGE (c)-[:HAS_PARENT]->(p)`); err != nil {
		return stats, err
	}
	stats.ParentRels = len(parents)

	tdwg, links, err := geoRows(ctx, src)
	if err != nil {
		return stats, err
	}
	for _, group := range tdwg {
		if err := l.runBatched(ctx, group.rows, group.query); err != nil {
			return stats, err
		}
		stats.TdwgNodes += len(group.rows)
	}

	if err := l.runBatched(ctx, links, `
		UNWIND $rows AS row
		MATCH (p:Resource {uri: row.uri})
		MATCH (loc:Resource {uri: row.loc_uri})
		MERGE (p)-[:HAS_LOCATION]->(loc)`); err != nil {
		return stats, err
	}
	stats.Locations = len(links)

	l.Logger.Info("graph load complete",
		"plants", stats.Plants, "parents", stats.ParentRels,
		"tdwg", stats.TdwgNodes, "locations", stats.Locations)
	return stats, nil
}

func (l *Loader) ensureConstraint(ctx context.Context) error {
	session := l.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: l.dbName})
	defer session.Close(ctx)

	_, err := session.Run(ctx,
		`CREATE CONSTRAINT n10s_unique_uri IF NOT EXISTS
		 FOR (r:Resource) REQUIRE r.uri IS UNIQUE`, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "create uri constraint")
	}
	return nil
}

// deleteLabel removes every node with the label in chunked implicit
// transactions, so huge graphs do not blow transaction memory.
func (l *Loader) deleteLabel(ctx context.Context, label string) error {
	l.Logger.Debug("deleting existing graph nodes", "label", label)
	session := l.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: l.dbName})
	defer session.Close(ctx)

	query := fmt.Sprintf(`MATCH (n:%s)
		CALL (n) { WITH n DETACH DELETE n } IN TRANSACTIONS OF 1000 ROWS`, label)
	if _, err := session.Run(ctx, query, nil); err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "delete %s nodes", label)
	}
	return nil
}

func (l *Loader) runBatched(ctx context.Context, rows []map[string]any, query string) error {
	if len(rows) == 0 {
		return nil
	}
	size := l.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	session := l.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: l.dbName})
	defer session.Close(ctx)

	for _, batch := range chunk(rows, size) {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return tx.Run(ctx, query, map[string]any{"rows": batch})
		})
		if err != nil {
			return errors.Wrap(errors.ErrCodeStorage, err, "write batch")
		}
	}
	return nil
}

func chunk(rows []map[string]any, size int) [][]map[string]any {
	var out [][]map[string]any
	for lo := 0; lo < len(rows); lo += size {
		out = append(out, rows[lo:min(lo+size, len(rows))])
	}
	return out
}

func plantURI(id int64) string { return rdf.URI("p", strconv.FormatInt(id, 10)) }

// plantRows builds the node rows and parent-link rows for accepted names.
func plantRows(ctx context.Context, src rdf.Source) (nodes, parents []map[string]any, err error) {
	err = src.EachAcceptedTaxon(ctx, func(n checklist.Name) error {
		nodes = append(nodes, map[string]any{
			"uri":        plantURI(n.ID),
			"taxon_name": n.TaxonName,
			"ipni_id":    n.IpniID,
			"powo_id":    n.PowoID,
		})
		if n.ParentID != nil {
			parents = append(parents, map[string]any{
				"uri":        plantURI(n.ID),
				"parent_uri": plantURI(*n.ParentID),
			})
		}
		return nil
	})
	return nodes, parents, err
}

type geoGroup struct {
	query string
	rows  []map[string]any
}

// geoRows derives the TDWG hierarchy and the plant-location links from the
// distribution rows, with the most specific recorded level winning and
// extinct occurrences skipped, mirroring the turtle export.
func geoRows(ctx context.Context, src rdf.Source) ([]geoGroup, []map[string]any, error) {
	accepted := map[int64]bool{}
	if err := src.EachAcceptedTaxon(ctx, func(n checklist.Name) error {
		accepted[n.ID] = true
		return nil
	}); err != nil {
		return nil, nil, err
	}

	continents := map[int]map[string]any{}
	regions := map[int]map[string]any{}
	areas := map[string]map[string]any{}
	var links []map[string]any

	err := src.EachDistribution(ctx, func(d checklist.Distribution) error {
		if d.ContinentCode > 0 {
			continents[d.ContinentCode] = map[string]any{
				"uri":       rdf.URI("con", strconv.Itoa(d.ContinentCode)),
				"continent": d.Continent,
			}
		}
		if d.RegionCode != nil {
			regions[*d.RegionCode] = map[string]any{
				"uri":       rdf.URI("reg", strconv.Itoa(*d.RegionCode)),
				"continent": d.Continent,
				"region":    d.Region,
				"con_uri":   rdf.URI("con", strconv.Itoa(d.ContinentCode)),
			}
		}
		if d.AreaCode != "" {
			row := map[string]any{
				"uri":       rdf.URI("are", d.AreaCode),
				"continent": d.Continent,
				"region":    d.Region,
				"area":      d.Area,
			}
			if d.RegionCode != nil {
				row["reg_uri"] = rdf.URI("reg", strconv.Itoa(*d.RegionCode))
			}
			areas[d.AreaCode] = row
		}

		if d.Extinct || !accepted[d.PlantID] {
			return nil
		}
		var locURI string
		switch {
		case d.AreaCode != "":
			locURI = rdf.URI("are", d.AreaCode)
		case d.RegionCode != nil:
			locURI = rdf.URI("reg", strconv.Itoa(*d.RegionCode))
		case d.ContinentCode > 0:
			locURI = rdf.URI("con", strconv.Itoa(d.ContinentCode))
		default:
			return nil
		}
		links = append(links, map[string]any{
			"uri":     plantURI(d.PlantID),
			"loc_uri": locURI,
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	groups := []geoGroup{
		{rows: values(continents), query: `
			UNWIND $rows AS row
			MERGE (c:Resource {uri: row.uri})
			SET c:` + rdf.LabelContinent + `:` + rdf.LabelTdwgNode + `,
				c.continent = row.continent`},
		{rows: values(regions), query: `
			UNWIND $rows AS row
			MERGE (r:Resource {uri: row.uri})
			SET r:` + rdf.LabelRegion + `:` + rdf.LabelTdwgNode + `,
				r.continent = row.continent, r.region = row.region
			WITH r, row
			MATCH (c:Resource {uri: row.con_uri})
			MERGE (c)-[:HAS_REGION]->(r)`},
		{rows: values(areas), query: `
			UNWIND $rows AS row
			MERGE (a:Resource {uri: row.uri})
			SET a:` + rdf.LabelArea + `:` + rdf.LabelTdwgNode + `,
				a.continent = row.continent, a.region = row.region, a.area = row.area
			WITH a, row
			MATCH (r:Resource {uri: row.reg_uri})
			MERGE (r)-[:HAS_AREA]->(a)`},
	}
	return groups, links, nil
}

func values[K comparable](m map[K]map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
