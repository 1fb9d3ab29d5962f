// Package checklist defines the WCVP domain records and the readers that
// decode the published pipe-delimited checklist files into them.
//
// The World Checklist of Vascular Plants ships as a zip containing two large
// pipe-separated CSV files: the names file (one row per taxon name, accepted
// or synonym, with its placement in the taxonomic hierarchy) and the
// distribution file (one row per taxon/botanical-area occurrence following
// the TDWG World Geographical Scheme). This package turns those rows into
// typed records and exposes the id/parent-id columns to the tree builder.
package checklist

import "github.com/florakb/florakb/pkg/tree"

// Column names of the WCVP names file used across the system.
const (
	ColPlantNameID  = "plant_name_id"
	ColParentNameID = "parent_plant_name_id"
)

// Name is one row of the WCVP names file: a taxon name with its taxonomic
// placement, nomenclatural status and publication details. Pointer fields are
// empty in the source data for a large share of rows.
type Name struct {
	ID                   int64   // WCVP identifier (plant_name_id)
	IpniID               string  // IPNI identifier, empty if unmatched
	TaxonRank            string  // rank in the hierarchy (family, genus, ...)
	TaxonStatus          string  // Accepted, Synonym, Unplaced, ...
	Family               string  // highest rank presented in WCVP
	GenusHybrid          string  // + graft-chimaera, × hybrid
	Genus                string
	SpeciesHybrid        string
	Species              string // epithet; empty at genus rank
	InfraspecificRank    string
	Infraspecies         string
	ParentheticalAuthor  string
	PrimaryAuthor        string
	PublicationAuthor    string
	PlaceOfPublication   string
	VolumeAndPage        string
	FirstPublished       string
	NomenclaturalRemarks string
	GeographicArea       string // narrative distribution statement
	Lifeform             string // modified Raunkiær lifeform
	Climate              string
	TaxonName            string // binomial/trinomial
	TaxonAuthors         string
	AcceptedID           *int64 // id of the accepted name, nil when unplaced
	BasionymID           *int64
	ReplacedSynonymAuth  string
	HomotypicSynonym     *bool
	ParentID             *int64 // parent genus/species, nil for non-accepted names
	PowoID               string
	HybridFormula        string
	Reviewed             *bool
}

// IsAccepted reports whether the name is its own accepted name.
func (n *Name) IsAccepted() bool {
	return n.AcceptedID != nil && *n.AcceptedID == n.ID
}

// Distribution is one row of the WCVP distribution file: a taxon occurring in
// one TDWG geographical unit, recorded at up to three nesting levels.
type Distribution struct {
	ID            int64  // plant_locality_id
	PlantID       int64  // plant_name_id of the taxon
	ContinentCode int    // TDWG level 1
	Continent     string
	RegionCode    *int // TDWG level 2
	Region        string
	AreaCode      string // TDWG level 3, three-letter
	Area          string
	Introduced    bool
	Extinct       bool
	Doubtful      bool
}

// TreeSource exposes the id/parent-id columns of the names as raw rows for
// the tree builder. Names without a recorded parent still contribute a row;
// the builder drops them during edge cleaning.
func TreeSource(names []Name) tree.Source {
	s := tree.Source{Columns: []string{ColPlantNameID, ColParentNameID}}
	for _, n := range names {
		row := tree.RawRow{ColPlantNameID: n.ID}
		if n.ParentID != nil {
			row[ColParentNameID] = *n.ParentID
		}
		s.Rows = append(s.Rows, row)
	}
	return s
}
