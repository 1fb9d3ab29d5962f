package rdf

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/florakb/florakb/pkg/checklist"
	"github.com/florakb/florakb/pkg/errors"
	"github.com/florakb/florakb/pkg/observability"
)

// Names of the generated turtle files and their zip package.
const (
	TdwgFile      = "tdwg_locations.ttl"
	PlantsFile    = "wcvp_plants.ttl"
	LocationsFile = "wcvp_locations.ttl"
	ZipName       = "ttls.zip"
)

// Source supplies the checklist rows to export. *store.Store satisfies it.
type Source interface {
	EachAcceptedTaxon(ctx context.Context, fn func(checklist.Name) error) error
	EachDistribution(ctx context.Context, fn func(checklist.Distribution) error) error
}

// Exporter writes the checklist as turtle files.
type Exporter struct {
	Source Source
	Logger *log.Logger
}

// NewExporter creates an exporter over src. A nil logger falls back to the
// package default.
func NewExporter(src Source, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.Default()
	}
	return &Exporter{Source: src, Logger: logger}
}

func plantTerm(id int64) string    { return Term("p", strconv.FormatInt(id, 10)) }
func continentTerm(c int) string   { return Term("con", strconv.Itoa(c)) }
func regionTerm(c int) string      { return Term("reg", strconv.Itoa(c)) }
func areaTerm(code string) string  { return Term("are", code) }
func rel(name string) string       { return "rel:" + name }
func nodeClass(name string) string { return "node:" + name }

// WritePlants emits one node per accepted name: type declarations, external
// identifier links, the taxon name literal and the parent link.
func (e *Exporter) WritePlants(ctx context.Context, w io.Writer) error {
	tw := NewWriter(w)
	count := 0
	err := e.Source.EachAcceptedTaxon(ctx, func(n checklist.Name) error {
		p := plantTerm(n.ID)
		tw.Type(p, nodeClass(LabelPlant))
		tw.Type(p, nodeClass(LabelBasicNode))
		if n.IpniID != "" {
			tw.Triple(p, rel("HAS_IPNI"), Term("ip", n.IpniID))
		}
		if n.PowoID != "" {
			tw.Triple(p, rel("HAS_POWO"), Term("po", n.PowoID))
		}
		tw.Triple(p, rel("taxon_name"), Literal(n.TaxonName))
		if n.ParentID != nil {
			tw.Triple(p, rel("HAS_PARENT"), plantTerm(*n.ParentID))
		}
		count++
		return nil
	})
	if err != nil {
		return err
	}
	if err := tw.Flush(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write plant triples")
	}
	e.Logger.Info("exported plant taxonomy", "plants", count)
	return nil
}

type tdwgRegion struct {
	name      string
	continent int
}

type tdwgArea struct {
	name      string
	continent int
	region    *int
}

// WriteTDWG derives the three-level TDWG geographic hierarchy from the
// distribution rows and emits it with names and containment links.
func (e *Exporter) WriteTDWG(ctx context.Context, w io.Writer) error {
	continents := map[int]string{}
	regions := map[int]tdwgRegion{}
	areas := map[string]tdwgArea{}

	err := e.Source.EachDistribution(ctx, func(d checklist.Distribution) error {
		if d.ContinentCode > 0 {
			continents[d.ContinentCode] = d.Continent
		}
		if d.RegionCode != nil {
			regions[*d.RegionCode] = tdwgRegion{name: d.Region, continent: d.ContinentCode}
		}
		if d.AreaCode != "" {
			areas[d.AreaCode] = tdwgArea{name: d.Area, continent: d.ContinentCode, region: d.RegionCode}
		}
		return nil
	})
	if err != nil {
		return err
	}

	tw := NewWriter(w)

	for _, code := range sortedKeys(continents) {
		l1 := continentTerm(code)
		tw.Type(l1, nodeClass(LabelContinent))
		tw.Type(l1, nodeClass(LabelTdwgNode))
		tw.Triple(l1, rel("continent"), Literal(continents[code]))
	}
	for _, code := range sortedKeys(regions) {
		r := regions[code]
		l2 := regionTerm(code)
		tw.Type(l2, nodeClass(LabelRegion))
		tw.Type(l2, nodeClass(LabelTdwgNode))
		tw.Triple(l2, rel("continent"), Literal(continents[r.continent]))
		tw.Triple(l2, rel("region"), Literal(r.name))
		tw.Triple(continentTerm(r.continent), rel("HAS_REGION"), l2)
	}
	for _, code := range sortedKeys(areas) {
		a := areas[code]
		l3 := areaTerm(code)
		tw.Type(l3, nodeClass(LabelArea))
		tw.Type(l3, nodeClass(LabelTdwgNode))
		tw.Triple(l3, rel("continent"), Literal(continents[a.continent]))
		if a.region != nil {
			tw.Triple(l3, rel("region"), Literal(regions[*a.region].name))
		}
		tw.Triple(l3, rel("area"), Literal(a.name))
		if a.region != nil {
			tw.Triple(regionTerm(*a.region), rel("HAS_AREA"), l3)
		}
	}

	if err := tw.Flush(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write tdwg triples")
	}
	e.Logger.Info("exported tdwg hierarchy",
		"continents", len(continents), "regions", len(regions), "areas", len(areas))
	return nil
}

// WriteLocations links each accepted plant to its occurrences at the most
// specific recorded TDWG level. Extinct occurrences are skipped.
func (e *Exporter) WriteLocations(ctx context.Context, w io.Writer) error {
	accepted := map[int64]bool{}
	err := e.Source.EachAcceptedTaxon(ctx, func(n checklist.Name) error {
		accepted[n.ID] = true
		return nil
	})
	if err != nil {
		return err
	}

	tw := NewWriter(w)
	count := 0
	err = e.Source.EachDistribution(ctx, func(d checklist.Distribution) error {
		if d.Extinct || !accepted[d.PlantID] {
			return nil
		}
		var loc string
		switch {
		case d.AreaCode != "":
			loc = areaTerm(d.AreaCode)
		case d.RegionCode != nil:
			loc = regionTerm(*d.RegionCode)
		case d.ContinentCode > 0:
			loc = continentTerm(d.ContinentCode)
		default:
			return nil
		}
		tw.Triple(plantTerm(d.PlantID), rel("HAS_LOCATION"), loc)
		count++
		return nil
	})
	if err != nil {
		return err
	}
	if err := tw.Flush(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write location triples")
	}
	e.Logger.Info("exported plant locations", "links", count)
	return nil
}

// ExportAll writes the three turtle files into dir and returns their paths
// in load order (geography before taxonomy before links).
func (e *Exporter) ExportAll(ctx context.Context, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "create export dir")
	}

	files := []struct {
		name  string
		write func(context.Context, io.Writer) error
	}{
		{TdwgFile, e.WriteTDWG},
		{PlantsFile, e.WritePlants},
		{LocationsFile, e.WriteLocations},
	}

	var paths []string
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		start := time.Now()
		out, err := os.Create(path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStorage, err, "create %s", f.name)
		}
		err = f.write(ctx, out)
		if cerr := out.Close(); err == nil && cerr != nil {
			err = errors.Wrap(errors.ErrCodeStorage, cerr, "close %s", f.name)
		}
		observability.Import().OnExportComplete(ctx, f.name, time.Since(start), err)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ExportZip runs ExportAll and packages the turtle files into a zip in dir,
// removing the loose files afterwards. Returns the zip path.
func (e *Exporter) ExportZip(ctx context.Context, dir string) (string, error) {
	paths, err := e.ExportAll(ctx, dir)
	if err != nil {
		return "", err
	}
	zipPath := filepath.Join(dir, ZipName)
	if err := zipFiles(zipPath, paths); err != nil {
		return "", err
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil {
			return "", errors.Wrap(errors.ErrCodeStorage, err, "remove %s", p)
		}
	}
	e.Logger.Info("packaged turtle files", "zip", zipPath)
	return zipPath, nil
}

func zipFiles(zipPath string, paths []string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "create zip")
	}

	zw := zip.NewWriter(out)
	for _, p := range paths {
		w, err := zw.Create(filepath.Base(p))
		if err != nil {
			out.Close()
			return errors.Wrap(errors.ErrCodeStorage, err, "zip entry %s", p)
		}
		in, err := os.Open(p)
		if err != nil {
			out.Close()
			return errors.Wrap(errors.ErrCodeStorage, err, "open %s", p)
		}
		_, err = io.Copy(w, in)
		in.Close()
		if err != nil {
			out.Close()
			return errors.Wrap(errors.ErrCodeStorage, err, "zip %s", p)
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return errors.Wrap(errors.ErrCodeStorage, err, "finalize zip")
	}
	return out.Close()
}

func sortedKeys[K int | string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
