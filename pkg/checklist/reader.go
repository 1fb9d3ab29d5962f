package checklist

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/florakb/florakb/pkg/errors"
)

// Separator used by the published WCVP CSV files.
const separator = '|'

// record pairs one decoded CSV row with the header index of its file.
type record struct {
	index map[string]int
	row   []string
}

func (r record) str(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.row) {
		return ""
	}
	return strings.TrimSpace(r.row[i])
}

func (r record) int64p(col string) (*int64, error) {
	s := r.str(col)
	if s == "" {
		return nil, nil
	}
	// Exports produced via floating-point intermediates write "123.0".
	s = strings.TrimSuffix(s, ".0")
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, errors.New(errors.ErrCodeBadIdentifier,
			"column %q: value %q is not an integer", col, r.str(col))
	}
	return &n, nil
}

func (r record) int64v(col string) (int64, error) {
	p, err := r.int64p(col)
	if err != nil {
		return 0, err
	}
	if p == nil {
		return 0, errors.New(errors.ErrCodeInvalidInput, "column %q: value required", col)
	}
	return *p, nil
}

// boolYN decodes the Y/N/T flag columns. Returns nil for empty cells.
func (r record) boolYN(col string) *bool {
	var v bool
	switch r.str(col) {
	case "Y", "T", "TRUE", "true", "1":
		v = true
	case "N", "F", "FALSE", "false", "0":
		v = false
	default:
		return nil
	}
	return &v
}

// newReader wraps r in a CSV reader configured for the WCVP dialect and
// consumes the header line. Fails with MISSING_FIELD when any of the required
// columns is absent.
func newReader(r io.Reader, required ...string) (*csv.Reader, map[string]int, error) {
	cr := csv.NewReader(r)
	cr.Comma = separator
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1 // source files have ragged rows near the tail

	header, err := cr.Read()
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "read header")
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(col)] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, nil, errors.New(errors.ErrCodeMissingField,
				"column %q not found in input", col)
		}
	}
	return cr, index, nil
}

// ReadNames streams the names file, invoking fn for every decoded row.
// Decoding stops at the first error, including any error returned by fn.
func ReadNames(r io.Reader, fn func(Name) error) error {
	cr, index, err := newReader(r, ColPlantNameID, "taxon_name")
	if err != nil {
		return err
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidFormat, err, "read names row")
		}

		n, err := decodeName(record{index: index, row: row})
		if err != nil {
			return err
		}
		if err := fn(n); err != nil {
			return err
		}
	}
}

// ParseNames reads the whole names file into memory.
func ParseNames(r io.Reader) ([]Name, error) {
	var names []Name
	err := ReadNames(r, func(n Name) error {
		names = append(names, n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func decodeName(rec record) (Name, error) {
	id, err := rec.int64v(ColPlantNameID)
	if err != nil {
		return Name{}, err
	}
	accepted, err := rec.int64p("accepted_plant_name_id")
	if err != nil {
		return Name{}, err
	}
	basionym, err := rec.int64p("basionym_plant_name_id")
	if err != nil {
		return Name{}, err
	}
	parent, err := rec.int64p(ColParentNameID)
	if err != nil {
		return Name{}, err
	}

	return Name{
		ID:                   id,
		IpniID:               rec.str("ipni_id"),
		TaxonRank:            rec.str("taxon_rank"),
		TaxonStatus:          rec.str("taxon_status"),
		Family:               rec.str("family"),
		GenusHybrid:          rec.str("genus_hybrid"),
		Genus:                rec.str("genus"),
		SpeciesHybrid:        rec.str("species_hybrid"),
		Species:              rec.str("species"),
		InfraspecificRank:    rec.str("infraspecific_rank"),
		Infraspecies:         rec.str("infraspecies"),
		ParentheticalAuthor:  rec.str("parenthetical_author"),
		PrimaryAuthor:        rec.str("primary_author"),
		PublicationAuthor:    rec.str("publication_author"),
		PlaceOfPublication:   rec.str("place_of_publication"),
		VolumeAndPage:        rec.str("volume_and_page"),
		FirstPublished:       rec.str("first_published"),
		NomenclaturalRemarks: rec.str("nomenclatural_remarks"),
		GeographicArea:       rec.str("geographic_area"),
		Lifeform:             rec.str("lifeform_description"),
		Climate:              rec.str("climate_description"),
		TaxonName:            rec.str("taxon_name"),
		TaxonAuthors:         rec.str("taxon_authors"),
		AcceptedID:           accepted,
		BasionymID:           basionym,
		ReplacedSynonymAuth:  rec.str("replaced_synonym_author"),
		HomotypicSynonym:     rec.boolYN("homotypic_synonym"),
		ParentID:             parent,
		PowoID:               rec.str("powo_id"),
		HybridFormula:        rec.str("hybrid_formula"),
		Reviewed:             rec.boolYN("reviewed"),
	}, nil
}

// ReadDistributions streams the distribution file, invoking fn per row.
func ReadDistributions(r io.Reader, fn func(Distribution) error) error {
	cr, index, err := newReader(r, "plant_locality_id", ColPlantNameID)
	if err != nil {
		return err
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidFormat, err, "read distribution row")
		}

		d, err := decodeDistribution(record{index: index, row: row})
		if err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
	}
}

func decodeDistribution(rec record) (Distribution, error) {
	id, err := rec.int64v("plant_locality_id")
	if err != nil {
		return Distribution{}, err
	}
	plantID, err := rec.int64v(ColPlantNameID)
	if err != nil {
		return Distribution{}, err
	}
	continentCode, err := rec.int64p("continent_code_l1")
	if err != nil {
		return Distribution{}, err
	}
	regionCode, err := rec.int64p("region_code_l2")
	if err != nil {
		return Distribution{}, err
	}

	d := Distribution{
		ID:        id,
		PlantID:   plantID,
		Continent: rec.str("continent"),
		Region:    rec.str("region"),
		AreaCode:  rec.str("area_code_l3"),
		Area:      rec.str("area"),
	}
	if continentCode != nil {
		d.ContinentCode = int(*continentCode)
	}
	if regionCode != nil {
		v := int(*regionCode)
		d.RegionCode = &v
	}
	if b := rec.boolYN("introduced"); b != nil {
		d.Introduced = *b
	}
	if b := rec.boolYN("extinct"); b != nil {
		d.Extinct = *b
	}
	if b := rec.boolYN("location_doubtful"); b != nil {
		d.Doubtful = *b
	}
	return d, nil
}
