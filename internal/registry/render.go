package registry

import (
	"bytes"
	"fmt"

	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"
)

// DefaultIncludes are the include targets of a rendered types header
var DefaultIncludes = []string{
	`"ap_fixed.h"`,
	`"ap_int.h"`,
	`"hls_math.h"`,
	`"hls_stream.h"`,
}

// Renderer turns a candidate into the header the build consumes
type Renderer struct {
	Includes []string
}

// NewRenderer creates a renderer; an empty include list uses DefaultIncludes
func NewRenderer(includes []string) *Renderer {
	if len(includes) == 0 {
		includes = DefaultIncludes
	}
	return &Renderer{Includes: includes}
}

// Render writes one typedef per variable, sorted by name
func (rr *Renderer) Render(c models.Candidate) []byte {
	var b bytes.Buffer
	b.WriteString("#pragma once\n")
	for _, inc := range rr.Includes {
		fmt.Fprintf(&b, "#include %s\n", inc)
	}
	b.WriteString("\n// generated fixed-point widths\n\n")
	for _, name := range c.Names() {
		w := c[name]
		fmt.Fprintf(&b, "// %s (W=%d, I=%d)\n", name, w.Total, w.Integer)
		fmt.Fprintf(&b, "typedef ap_fixed<%d, %d> %s_t;\n", w.Total, w.Integer, name)
	}
	return b.Bytes()
}

// Materialize renders an arbitrary candidate in the registry's header format
func (r *Registry) Materialize(c models.Candidate) []byte {
	return r.renderer.Render(c)
}

// Render renders the current widths
func (r *Registry) Render() []byte {
	return r.renderer.Render(r.Snapshot())
}

// Renderer returns the header renderer used by Materialize
func (r *Registry) Renderer() *Renderer {
	return r.renderer
}
