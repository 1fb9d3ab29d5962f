package api

import (
	"encoding/json"
	"net/http"

	"github.com/florakb/florakb/pkg/checklist"
	"github.com/florakb/florakb/pkg/errors"
	"github.com/florakb/florakb/pkg/store"
)

// Taxon is the JSON shape of a checklist name. Field names follow the WCVP
// column vocabulary.
type Taxon struct {
	ID             int64  `json:"plant_name_id"`
	TaxonName      string `json:"taxon_name"`
	TaxonRank      string `json:"taxon_rank,omitempty"`
	TaxonStatus    string `json:"taxon_status,omitempty"`
	TaxonAuthors   string `json:"taxon_authors,omitempty"`
	Family         string `json:"family,omitempty"`
	Genus          string `json:"genus,omitempty"`
	Species        string `json:"species,omitempty"`
	IpniID         string `json:"ipni_id,omitempty"`
	PowoID         string `json:"powo_id,omitempty"`
	GeographicArea string `json:"geographic_area,omitempty"`
	Lifeform       string `json:"lifeform_description,omitempty"`
	Climate        string `json:"climate_description,omitempty"`
	AcceptedID     *int64 `json:"accepted_plant_name_id,omitempty"`
	ParentID       *int64 `json:"parent_plant_name_id,omitempty"`
	Reviewed       *bool  `json:"reviewed,omitempty"`
}

func taxonFromName(n checklist.Name) Taxon {
	return Taxon{
		ID:             n.ID,
		TaxonName:      n.TaxonName,
		TaxonRank:      n.TaxonRank,
		TaxonStatus:    n.TaxonStatus,
		TaxonAuthors:   n.TaxonAuthors,
		Family:         n.Family,
		Genus:          n.Genus,
		Species:        n.Species,
		IpniID:         n.IpniID,
		PowoID:         n.PowoID,
		GeographicArea: n.GeographicArea,
		Lifeform:       n.Lifeform,
		Climate:        n.Climate,
		AcceptedID:     n.AcceptedID,
		ParentID:       n.ParentID,
		Reviewed:       n.Reviewed,
	}
}

func (t Taxon) toName() checklist.Name {
	return checklist.Name{
		ID:             t.ID,
		TaxonName:      t.TaxonName,
		TaxonRank:      t.TaxonRank,
		TaxonStatus:    t.TaxonStatus,
		TaxonAuthors:   t.TaxonAuthors,
		Family:         t.Family,
		Genus:          t.Genus,
		Species:        t.Species,
		IpniID:         t.IpniID,
		PowoID:         t.PowoID,
		GeographicArea: t.GeographicArea,
		Lifeform:       t.Lifeform,
		Climate:        t.Climate,
		AcceptedID:     t.AcceptedID,
		ParentID:       t.ParentID,
		Reviewed:       t.Reviewed,
	}
}

// SearchResponse is a paginated taxa search result.
type SearchResponse struct {
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Items  []Taxon `json:"items"`
}

// DistributionItem is the JSON shape of one occurrence row.
type DistributionItem struct {
	ID            int64  `json:"plant_locality_id"`
	PlantID       int64  `json:"plant_name_id"`
	ContinentCode int    `json:"continent_code_l1"`
	Continent     string `json:"continent,omitempty"`
	RegionCode    *int   `json:"region_code_l2,omitempty"`
	Region        string `json:"region,omitempty"`
	AreaCode      string `json:"area_code_l3,omitempty"`
	Area          string `json:"area,omitempty"`
	Introduced    bool   `json:"introduced"`
	Extinct       bool   `json:"extinct"`
	Doubtful      bool   `json:"location_doubtful"`
}

func distributionItem(d checklist.Distribution) DistributionItem {
	return DistributionItem{
		ID:            d.ID,
		PlantID:       d.PlantID,
		ContinentCode: d.ContinentCode,
		Continent:     d.Continent,
		RegionCode:    d.RegionCode,
		Region:        d.Region,
		AreaCode:      d.AreaCode,
		Area:          d.Area,
		Introduced:    d.Introduced,
		Extinct:       d.Extinct,
		Doubtful:      d.Doubtful,
	}
}

// TreeNodeItem is the JSON shape of one nested-set node.
type TreeNodeItem struct {
	Position       int    `json:"position"`
	ParentPosition *int   `json:"parent_position,omitempty"`
	PlantNameID    int64  `json:"plant_name_id"`
	Depth          int    `json:"depth"`
	RightBound     *int   `json:"right_bound,omitempty"`
	IsLeaf         bool   `json:"is_leaf"`
	TaxonName      string `json:"taxon_name"`
}

func treeNodeItem(n store.TreeNode) TreeNodeItem {
	return TreeNodeItem{
		Position:       n.Position,
		ParentPosition: n.ParentPosition,
		PlantNameID:    n.PlantNameID,
		Depth:          n.Depth,
		RightBound:     n.RightBound,
		IsLeaf:         n.IsLeaf,
		TaxonName:      n.TaxonName,
	}
}

func treeNodeItems(nodes []store.TreeNode) []TreeNodeItem {
	items := make([]TreeNodeItem, len(nodes))
	for i, n := range nodes {
		items[i] = treeNodeItem(n)
	}
	return items
}

// ImportRequest triggers a checklist import run.
type ImportRequest struct {
	Force             bool `json:"force"`
	SkipDistributions bool `json:"skip_distributions"`
	SkipTree          bool `json:"skip_tree"`
	DeleteFiles       bool `json:"delete_files"`
}

// ImportResponse summarizes a finished import run.
type ImportResponse struct {
	Names         int    `json:"names"`
	Distributions int    `json:"distributions"`
	TreeNodes     int    `json:"tree_nodes"`
	Root          int64  `json:"root"`
	SyntheticRoot bool   `json:"synthetic_root"`
	DataDir       string `json:"data_dir"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeError maps structured error codes onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeTaxonNotFound, errors.ErrCodeNotFound, errors.ErrCodeFileNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeMissingField, errors.ErrCodeBadIdentifier, errors.ErrCodeEmptyInput,
		errors.ErrCodeInvalidInput, errors.ErrCodeInvalidFormat, errors.ErrCodeNoRoot,
		errors.ErrCodeCycle:
		status = http.StatusBadRequest
	case errors.ErrCodeUnauthorized:
		status = http.StatusUnauthorized
	case errors.ErrCodeNetwork, errors.ErrCodeTimeout:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, ErrorResponse{Error: errors.UserMessage(err), Code: string(code)})
}
