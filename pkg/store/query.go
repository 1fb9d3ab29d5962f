package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/florakb/florakb/pkg/checklist"
	"github.com/florakb/florakb/pkg/errors"
)

// TaxonFilter holds the optional search predicates for taxa. Name fields
// match case-insensitively with contains semantics; the rest match exactly.
type TaxonFilter struct {
	Family      string
	Genus       string
	Species     string
	TaxonName   string
	TaxonRank   string
	TaxonStatus string
	PowoID      string
	Limit       int
	Offset      int
}

// TreeNode is one row of the nested-set table joined with its taxon name.
type TreeNode struct {
	Position       int
	ParentPosition *int
	PlantNameID    int64
	Depth          int
	RightBound     *int
	IsLeaf         bool
	TaxonName      string
}

// Span returns the half-open preorder range covered by the node's subtree,
// reading an absent right bound as "just this node".
func (n TreeNode) Span() (lo, hi int) {
	if n.RightBound != nil {
		return n.Position, *n.RightBound
	}
	return n.Position, n.Position + 1
}

const taxonColumns = `plant_name_id, ipni_id, taxon_rank, taxon_status, family,
	genus_hybrid, genus, species_hybrid, species, infraspecific_rank, infraspecies,
	parenthetical_author, primary_author, publication_author, place_of_publication,
	volume_and_page, first_published, nomenclatural_remarks, geographic_area,
	lifeform_description, climate_description, taxon_name, taxon_authors,
	accepted_plant_name_id, basionym_plant_name_id, replaced_synonym_author,
	homotypic_synonym, parent_plant_name_id, powo_id, hybrid_formula, reviewed`

// getStr is a small helper for optional string columns.
func getStr(v sql.NullString) string {
	if v.Valid {
		return v.String
	}
	return ""
}

func getInt64p(v sql.NullInt64) *int64 {
	if v.Valid {
		n := v.Int64
		return &n
	}
	return nil
}

func getBoolp(v sql.NullBool) *bool {
	if v.Valid {
		b := v.Bool
		return &b
	}
	return nil
}

// scanTaxon decodes one taxon row in taxonColumns order.
func scanTaxon(row interface{ Scan(...any) error }) (checklist.Name, error) {
	var n checklist.Name
	var (
		ipni, rank, status, family, genusHybrid, genus, speciesHybrid, species,
		infraRank, infra, parenAuth, primAuth, pubAuth, place, volPage, firstPub,
		remarks, geoArea, lifeform, climate, authors, replacedAuth, powo,
		hybridFormula sql.NullString
		accepted, basionym, parent sql.NullInt64
		homotypic, reviewed        sql.NullBool
	)
	err := row.Scan(
		&n.ID, &ipni, &rank, &status, &family,
		&genusHybrid, &genus, &speciesHybrid, &species, &infraRank, &infra,
		&parenAuth, &primAuth, &pubAuth, &place,
		&volPage, &firstPub, &remarks, &geoArea,
		&lifeform, &climate, &n.TaxonName, &authors,
		&accepted, &basionym, &replacedAuth,
		&homotypic, &parent, &powo, &hybridFormula, &reviewed,
	)
	if err != nil {
		return n, err
	}
	n.IpniID = getStr(ipni)
	n.TaxonRank = getStr(rank)
	n.TaxonStatus = getStr(status)
	n.Family = getStr(family)
	n.GenusHybrid = getStr(genusHybrid)
	n.Genus = getStr(genus)
	n.SpeciesHybrid = getStr(speciesHybrid)
	n.Species = getStr(species)
	n.InfraspecificRank = getStr(infraRank)
	n.Infraspecies = getStr(infra)
	n.ParentheticalAuthor = getStr(parenAuth)
	n.PrimaryAuthor = getStr(primAuth)
	n.PublicationAuthor = getStr(pubAuth)
	n.PlaceOfPublication = getStr(place)
	n.VolumeAndPage = getStr(volPage)
	n.FirstPublished = getStr(firstPub)
	n.NomenclaturalRemarks = getStr(remarks)
	n.GeographicArea = getStr(geoArea)
	n.Lifeform = getStr(lifeform)
	n.Climate = getStr(climate)
	n.TaxonAuthors = getStr(authors)
	n.AcceptedID = getInt64p(accepted)
	n.BasionymID = getInt64p(basionym)
	n.ReplacedSynonymAuth = getStr(replacedAuth)
	n.HomotypicSynonym = getBoolp(homotypic)
	n.ParentID = getInt64p(parent)
	n.PowoID = getStr(powo)
	n.HybridFormula = getStr(hybridFormula)
	n.Reviewed = getBoolp(reviewed)
	return n, nil
}

// TaxonByID fetches one taxon. Fails with TAXON_NOT_FOUND when absent.
func (s *Store) TaxonByID(ctx context.Context, id int64) (checklist.Name, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taxonColumns+` FROM taxon WHERE plant_name_id = ?`, id)
	n, err := scanTaxon(row)
	if err == sql.ErrNoRows {
		return n, errors.New(errors.ErrCodeTaxonNotFound, "taxon %d not found", id)
	}
	if err != nil {
		return n, errors.Wrap(errors.ErrCodeStorage, err, "query taxon %d", id)
	}
	return n, nil
}

// SearchTaxa returns taxa matching the filter plus the total match count
// before pagination.
func (s *Store) SearchTaxa(ctx context.Context, f TaxonFilter) ([]checklist.Name, int, error) {
	var conds []string
	var args []any

	like := func(col, val string) {
		conds = append(conds, col+" ILIKE ?")
		args = append(args, "%"+val+"%")
	}
	eq := func(col, val string) {
		conds = append(conds, col+" = ?")
		args = append(args, val)
	}
	if f.Family != "" {
		like("family", f.Family)
	}
	if f.Genus != "" {
		like("genus", f.Genus)
	}
	if f.Species != "" {
		like("species", f.Species)
	}
	if f.TaxonName != "" {
		like("taxon_name", f.TaxonName)
	}
	if f.TaxonRank != "" {
		eq("taxon_rank", f.TaxonRank)
	}
	if f.TaxonStatus != "" {
		eq("taxon_status", f.TaxonStatus)
	}
	if f.PowoID != "" {
		eq("powo_id", f.PowoID)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM taxon`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(errors.ErrCodeStorage, err, "count taxa")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf(
		`SELECT %s FROM taxon%s ORDER BY plant_name_id LIMIT %d OFFSET %d`,
		taxonColumns, where, limit, max(f.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(errors.ErrCodeStorage, err, "search taxa")
	}
	defer rows.Close()

	var out []checklist.Name
	for rows.Next() {
		n, err := scanTaxon(rows)
		if err != nil {
			return nil, 0, errors.Wrap(errors.ErrCodeStorage, err, "scan taxon")
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

// CreateTaxon inserts one taxon row.
func (s *Store) CreateTaxon(ctx context.Context, n checklist.Name) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO taxon VALUES (`+
		strings.TrimSuffix(strings.Repeat("?,", 31), ",")+`)`,
		n.ID, nullStr(n.IpniID), nullStr(n.TaxonRank), nullStr(n.TaxonStatus),
		nullStr(n.Family), nullStr(n.GenusHybrid), nullStr(n.Genus),
		nullStr(n.SpeciesHybrid), nullStr(n.Species), nullStr(n.InfraspecificRank),
		nullStr(n.Infraspecies), nullStr(n.ParentheticalAuthor), nullStr(n.PrimaryAuthor),
		nullStr(n.PublicationAuthor), nullStr(n.PlaceOfPublication), nullStr(n.VolumeAndPage),
		nullStr(n.FirstPublished), nullStr(n.NomenclaturalRemarks), nullStr(n.GeographicArea),
		nullStr(n.Lifeform), nullStr(n.Climate), n.TaxonName, nullStr(n.TaxonAuthors),
		n.AcceptedID, n.BasionymID, nullStr(n.ReplacedSynonymAuth), n.HomotypicSynonym,
		n.ParentID, nullStr(n.PowoID), nullStr(n.HybridFormula), n.Reviewed,
	)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "create taxon %d", n.ID)
	}
	return nil
}

// UpdateTaxon replaces the mutable descriptive columns of a taxon.
func (s *Store) UpdateTaxon(ctx context.Context, n checklist.Name) error {
	res, err := s.db.ExecContext(ctx, `UPDATE taxon SET
		taxon_rank = ?, taxon_status = ?, family = ?, genus = ?, species = ?,
		taxon_name = ?, taxon_authors = ?, geographic_area = ?,
		lifeform_description = ?, climate_description = ?,
		accepted_plant_name_id = ?, parent_plant_name_id = ?, powo_id = ?, reviewed = ?
		WHERE plant_name_id = ?`,
		nullStr(n.TaxonRank), nullStr(n.TaxonStatus), nullStr(n.Family),
		nullStr(n.Genus), nullStr(n.Species), n.TaxonName, nullStr(n.TaxonAuthors),
		nullStr(n.GeographicArea), nullStr(n.Lifeform), nullStr(n.Climate),
		n.AcceptedID, n.ParentID, nullStr(n.PowoID), n.Reviewed, n.ID,
	)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "update taxon %d", n.ID)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return errors.New(errors.ErrCodeTaxonNotFound, "taxon %d not found", n.ID)
	}
	return nil
}

// DeleteTaxon removes a taxon and its distributions.
func (s *Store) DeleteTaxon(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM distribution WHERE plant_name_id = ?`, id); err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "delete distributions of %d", id)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM taxon WHERE plant_name_id = ?`, id)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "delete taxon %d", id)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return errors.New(errors.ErrCodeTaxonNotFound, "taxon %d not found", id)
	}
	return nil
}

// DistributionsByTaxon lists a taxon's occurrences ordered by locality id.
func (s *Store) DistributionsByTaxon(ctx context.Context, id int64) ([]checklist.Distribution, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		plant_locality_id, plant_name_id, continent_code_l1, continent,
		region_code_l2, region, area_code_l3, area, introduced, extinct, location_doubtful
		FROM distribution WHERE plant_name_id = ? ORDER BY plant_locality_id`, id)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "query distributions of %d", id)
	}
	defer rows.Close()

	var out []checklist.Distribution
	for rows.Next() {
		var d checklist.Distribution
		var continent, region, areaCode, area sql.NullString
		var regionCode sql.NullInt64
		err := rows.Scan(&d.ID, &d.PlantID, &d.ContinentCode, &continent,
			&regionCode, &region, &areaCode, &area, &d.Introduced, &d.Extinct, &d.Doubtful)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStorage, err, "scan distribution")
		}
		d.Continent = getStr(continent)
		d.Region = getStr(region)
		d.AreaCode = getStr(areaCode)
		d.Area = getStr(area)
		if regionCode.Valid {
			rc := int(regionCode.Int64)
			d.RegionCode = &rc
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

const treeColumns = `t.position, t.parent_position, t.plant_name_id, t.depth,
	t.right_bound, t.is_leaf, x.taxon_name`

const treeJoin = ` FROM taxon_tree t JOIN taxon x ON x.plant_name_id = t.plant_name_id `

func scanTreeNode(row interface{ Scan(...any) error }) (TreeNode, error) {
	var n TreeNode
	var parent, right sql.NullInt64
	if err := row.Scan(&n.Position, &parent, &n.PlantNameID, &n.Depth, &right, &n.IsLeaf, &n.TaxonName); err != nil {
		return n, err
	}
	if parent.Valid {
		p := int(parent.Int64)
		n.ParentPosition = &p
	}
	if right.Valid {
		r := int(right.Int64)
		n.RightBound = &r
	}
	return n, nil
}

// TreeRoot returns the root node (position 1).
func (s *Store) TreeRoot(ctx context.Context) (TreeNode, error) {
	return s.treeNode(ctx, `WHERE t.position = 1`)
}

// TreeNodeByTaxon returns the tree node for a taxon id.
func (s *Store) TreeNodeByTaxon(ctx context.Context, id int64) (TreeNode, error) {
	return s.treeNode(ctx, `WHERE t.plant_name_id = ?`, id)
}

func (s *Store) treeNode(ctx context.Context, where string, args ...any) (TreeNode, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+treeColumns+treeJoin+where, args...)
	n, err := scanTreeNode(row)
	if err == sql.ErrNoRows {
		return n, errors.New(errors.ErrCodeNotFound, "tree node not found")
	}
	if err != nil {
		return n, errors.Wrap(errors.ErrCodeStorage, err, "query tree node")
	}
	return n, nil
}

// Subtree returns a node and all its descendants via one nested-set range
// scan. A maxDepth > 0 bounds how far below the node results go.
func (s *Store) Subtree(ctx context.Context, id int64, maxDepth int) ([]TreeNode, error) {
	node, err := s.TreeNodeByTaxon(ctx, id)
	if err != nil {
		return nil, err
	}
	lo, hi := node.Span()

	query := `SELECT ` + treeColumns + treeJoin + `WHERE t.position >= ? AND t.position < ?`
	args := []any{lo, hi}
	if maxDepth > 0 {
		query += ` AND t.depth <= ?`
		args = append(args, node.Depth+maxDepth)
	}
	query += ` ORDER BY t.position`

	return s.treeNodes(ctx, query, args...)
}

// Children returns the direct children of a taxon's node in position order.
func (s *Store) Children(ctx context.Context, id int64) ([]TreeNode, error) {
	node, err := s.TreeNodeByTaxon(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.treeNodes(ctx,
		`SELECT `+treeColumns+treeJoin+`WHERE t.parent_position = ? ORDER BY t.position`,
		node.Position)
}

// Ancestors returns the path from the root down to (excluding) the taxon's
// node, using the nested-set containment test.
func (s *Store) Ancestors(ctx context.Context, id int64) ([]TreeNode, error) {
	node, err := s.TreeNodeByTaxon(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.treeNodes(ctx, `SELECT `+treeColumns+treeJoin+
		`WHERE t.position < ? AND t.right_bound IS NOT NULL AND t.right_bound > ?
		 ORDER BY t.position`,
		node.Position, node.Position)
}

func (s *Store) treeNodes(ctx context.Context, query string, args ...any) ([]TreeNode, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "query tree nodes")
	}
	defer rows.Close()

	var out []TreeNode
	for rows.Next() {
		n, err := scanTreeNode(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStorage, err, "scan tree node")
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// EachAcceptedTaxon streams taxa that are their own accepted name, in id
// order. Used by the RDF exporter.
func (s *Store) EachAcceptedTaxon(ctx context.Context, fn func(checklist.Name) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taxonColumns+
		` FROM taxon WHERE accepted_plant_name_id = plant_name_id ORDER BY plant_name_id`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "query accepted taxa")
	}
	defer rows.Close()

	for rows.Next() {
		n, err := scanTaxon(rows)
		if err != nil {
			return errors.Wrap(errors.ErrCodeStorage, err, "scan taxon")
		}
		if err := fn(n); err != nil {
			return err
		}
	}
	return rows.Err()
}

// EachDistribution streams all distribution rows in locality order.
func (s *Store) EachDistribution(ctx context.Context, fn func(checklist.Distribution) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT
		plant_locality_id, plant_name_id, continent_code_l1, continent,
		region_code_l2, region, area_code_l3, area, introduced, extinct, location_doubtful
		FROM distribution ORDER BY plant_locality_id`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "query distributions")
	}
	defer rows.Close()

	for rows.Next() {
		var d checklist.Distribution
		var continent, region, areaCode, area sql.NullString
		var regionCode sql.NullInt64
		err := rows.Scan(&d.ID, &d.PlantID, &d.ContinentCode, &continent,
			&regionCode, &region, &areaCode, &area, &d.Introduced, &d.Extinct, &d.Doubtful)
		if err != nil {
			return errors.Wrap(errors.ErrCodeStorage, err, "scan distribution")
		}
		d.Continent = getStr(continent)
		d.Region = getStr(region)
		d.AreaCode = getStr(areaCode)
		d.Area = getStr(area)
		if regionCode.Valid {
			rc := int(regionCode.Int64)
			d.RegionCode = &rc
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	return rows.Err()
}
