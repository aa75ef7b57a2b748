// Package registry parses fixed-point type declarations and keeps the
// current width of every tunable variable.
package registry

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/logger"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"
)

// DefaultReservedPrefix marks helper-local types that are never tuned
const DefaultReservedPrefix = "_subfunc_"

// typedef ap_fixed<W, I[, QUANT][, OVF]> name_t;
var declPattern = regexp.MustCompile(`typedef\s+ap_fixed<(\d+),\s*(\d+)(?:,\s*[A-Z_0-9]+)?(?:,\s*[A-Z_0-9]+)?>\s+(\w+)_t\s*;`)

var (
	ErrUnknownVariable = errors.New("unknown variable")
	ErrInvalidWidth    = errors.New("invalid width")
)

// ParseError is returned when the source artifact cannot yield any variables.
// It is fatal to a campaign.
type ParseError struct {
	Source string
	Line   int
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse ")
	b.WriteString(e.Source)
	if e.Line > 0 {
		fmt.Fprintf(&b, ":%d", e.Line)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Options controls how declarations are turned into variables
type Options struct {
	ReservedPrefix string
	FloorInteger   int
	// InitialWidth, when set, replaces every parsed width as the starting point
	InitialWidth *models.Width
	Includes     []string
}

// Registry holds the tunable variables in declaration order.
// It is not safe for concurrent mutation.
type Registry struct {
	source   string
	renderer *Renderer
	vars     []*models.Variable
	byName   map[string]*models.Variable
}

// Load reads and parses a header file
func Load(path string, opts Options) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Source: path, Reason: "cannot read source", Err: err}
	}
	return Parse(path, data, opts)
}

// Parse extracts variables from source text. source names the artifact in errors.
func Parse(source string, data []byte, opts Options) (*Registry, error) {
	if opts.ReservedPrefix == "" {
		opts.ReservedPrefix = DefaultReservedPrefix
	}
	if opts.InitialWidth != nil && !opts.InitialWidth.Valid() {
		return nil, &ParseError{Source: source, Reason: fmt.Sprintf("initial width %s violates the structural floor", opts.InitialWidth)}
	}

	r := &Registry{
		source:   source,
		renderer: NewRenderer(opts.Includes),
		byName:   make(map[string]*models.Variable),
	}

	for _, m := range declPattern.FindAllSubmatchIndex(data, -1) {
		line := 1 + bytes.Count(data[:m[0]], []byte("\n"))
		name := string(data[m[6]:m[7]])
		if strings.HasPrefix(name, opts.ReservedPrefix) {
			continue
		}
		if _, dup := r.byName[name]; dup {
			logger.Warn("duplicate declaration ignored", "variable", name, "source", source, "line", line)
			continue
		}

		total, err := strconv.Atoi(string(data[m[2]:m[3]]))
		if err != nil {
			return nil, &ParseError{Source: source, Line: line, Reason: "bad total width", Err: err}
		}
		integer, err := strconv.Atoi(string(data[m[4]:m[5]]))
		if err != nil {
			return nil, &ParseError{Source: source, Line: line, Reason: "bad integer width", Err: err}
		}

		initial := models.Width{Total: total, Integer: integer}
		if opts.InitialWidth != nil {
			initial = *opts.InitialWidth
		} else if !initial.Valid() {
			return nil, &ParseError{Source: source, Line: line, Reason: fmt.Sprintf("%s: width %s violates the structural floor", name, initial)}
		}

		// a variable declared narrower than the floor keeps its own integer width as floor
		floor := max(opts.FloorInteger, 1)
		if floor > initial.Integer {
			floor = initial.Integer
		}

		v := &models.Variable{
			Name:         name,
			Index:        len(r.vars),
			Initial:      initial,
			Current:      initial,
			FloorInteger: floor,
			Status:       models.VariableUnoptimized,
		}
		r.vars = append(r.vars, v)
		r.byName[name] = v
	}

	if len(r.vars) == 0 {
		return nil, &ParseError{Source: source, Reason: "no fixed-point declarations found"}
	}
	return r, nil
}

// Source returns the artifact the registry was parsed from
func (r *Registry) Source() string {
	return r.source
}

// Len returns the number of variables
func (r *Registry) Len() int {
	return len(r.vars)
}

// Names returns the variable names in declaration order
func (r *Registry) Names() []string {
	names := make([]string, len(r.vars))
	for i, v := range r.vars {
		names[i] = v.Name
	}
	return names
}

// Variables returns the variables in declaration order
func (r *Registry) Variables() []*models.Variable {
	out := make([]*models.Variable, len(r.vars))
	copy(out, r.vars)
	return out
}

// Variable looks a variable up by name
func (r *Registry) Variable(name string) (*models.Variable, bool) {
	v, ok := r.byName[name]
	return v, ok
}

// Width returns the current width of a variable
func (r *Registry) Width(name string) (models.Width, error) {
	v, ok := r.byName[name]
	if !ok {
		return models.Width{}, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	return v.Current, nil
}

// SetWidth commits a new current width. Widths may never grow beyond the
// initial width or cross the structural and integer floors.
func (r *Registry) SetWidth(name string, w models.Width) error {
	v, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	switch {
	case !w.Valid():
		return fmt.Errorf("%w: %s %s violates the structural floor", ErrInvalidWidth, name, w)
	case w.Integer < v.FloorInteger:
		return fmt.Errorf("%w: %s integer width %d below floor %d", ErrInvalidWidth, name, w.Integer, v.FloorInteger)
	case w.Total > v.Initial.Total || w.Integer > v.Initial.Integer:
		return fmt.Errorf("%w: %s %s exceeds initial %s", ErrInvalidWidth, name, w, v.Initial)
	}
	v.Current = w
	return nil
}

// Snapshot returns the current width of every variable
func (r *Registry) Snapshot() models.Candidate {
	c := make(models.Candidate, len(r.vars))
	for _, v := range r.vars {
		c[v.Name] = v.Current
	}
	return c
}

// InitialSnapshot returns the initial width of every variable
func (r *Registry) InitialSnapshot() models.Candidate {
	c := make(models.Candidate, len(r.vars))
	for _, v := range r.vars {
		c[v.Name] = v.Initial
	}
	return c
}

// Results returns the per-variable results in declaration order
func (r *Registry) Results() []models.Result {
	out := make([]models.Result, len(r.vars))
	for i, v := range r.vars {
		out[i] = v.Result()
	}
	return out
}
