// Package rdf exports the checklist as RDF Turtle.
//
// Three turtle files are produced: the TDWG geographic hierarchy, the plant
// taxonomy (accepted names only, with IPNI/POWO cross-references and parent
// links) and the plant-to-location distribution links. The files are written
// under an export directory and can be packaged into a single zip for
// downstream graph loaders.
package rdf

import "strings"

// BaseURI is the root of the project's own RDF identifier space.
const BaseURI = "https://florakb.org/wcvp/"

// WGSRPDBase is the root of the TDWG World Geographical Scheme identifiers.
const WGSRPDBase = "http://rs.tdwg.org/wgsrpd/"

// Prefix binds a short prefix to a namespace URI.
type Prefix struct {
	Name string
	URI  string
}

// Prefixes lists every namespace emitted in the turtle header, in a fixed
// order so output stays diffable.
var Prefixes = []Prefix{
	{"node", BaseURI + "node#"},
	{"rel", BaseURI + "relation#"},
	{"xs", "http://www.w3.org/2001/XMLSchema#"},
	{"con", WGSRPDBase + "level1/"},
	{"reg", WGSRPDBase + "level2/"},
	{"are", WGSRPDBase + "level3/"},
	{"p", BaseURI + "Plant#"},
	{"po", "https://powo.science.kew.org/id#"},
	{"ip", "https://www.ipni.org/id#"},
	{"nc", "http://purl.obolibrary.org/obo/NCBITaxon_"},
}

// Node type labels shared with the graph loader. Loaders delete by these
// labels before a re-import.
const (
	LabelBasicNode = "DbWCVP"
	LabelTdwgNode  = "DbTdwgLocation"
	LabelPlant     = "Plant"
	LabelContinent = "Continent"
	LabelRegion    = "Region"
	LabelArea      = "Area"
)

// URI renders the full IRI for a prefixed name. Graph loaders use this to
// key nodes the same way the turtle files do.
func URI(prefix, local string) string {
	return namespaceURI(prefix) + local
}

func namespaceURI(prefix string) string {
	for _, p := range Prefixes {
		if p.Name == prefix {
			return p.URI
		}
	}
	return BaseURI + prefix + "#"
}

// Term renders a prefixed name, falling back to a full IRI when the local
// part contains characters a Turtle local name cannot carry.
func Term(prefix, local string) string {
	if safeLocal(local) {
		return prefix + ":" + local
	}
	return "<" + namespaceURI(prefix) + local + ">"
}

func safeLocal(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.':
		default:
			return false
		}
	}
	// Leading/trailing dots are not valid in local names.
	return !strings.HasPrefix(s, ".") && !strings.HasSuffix(s, ".")
}
