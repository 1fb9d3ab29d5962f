package rdf

import (
	"bufio"
	"io"
	"strings"
)

// Writer emits Turtle triples one statement per line. Terms are passed
// already rendered (prefixed names or <IRI>s); literals go through Literal.
// The first write emits the @prefix header. Errors stick: after a failed
// write every later call is a no-op and Flush reports the first error.
type Writer struct {
	w      *bufio.Writer
	err    error
	opened bool
}

// NewWriter wraps w in a turtle statement writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, 64<<10)}
}

func (t *Writer) header() {
	for _, p := range Prefixes {
		t.write("@prefix " + p.Name + ": <" + p.URI + "> .\n")
	}
	t.write("\n")
}

// Triple writes one subject predicate object statement.
func (t *Writer) Triple(s, p, o string) {
	if t.err != nil {
		return
	}
	if !t.opened {
		t.opened = true
		t.header()
	}
	t.write(s + " " + p + " " + o + " .\n")
}

// Type writes an rdf:type statement using the "a" shorthand.
func (t *Writer) Type(s, class string) {
	t.Triple(s, "a", class)
}

func (t *Writer) write(s string) {
	if t.err != nil {
		return
	}
	_, t.err = t.w.WriteString(s)
}

// Flush drains the buffer and returns the first write error, if any.
func (t *Writer) Flush() error {
	if t.err != nil {
		return t.err
	}
	return t.w.Flush()
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// Literal renders a string literal typed as xs:string.
func Literal(v string) string {
	return `"` + literalEscaper.Replace(v) + `"^^xs:string`
}
