package dispatch

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/dispatch-api/internal/models"
)

//go:embed data/lookup.yaml
var embeddedLookup []byte

// District maps a named area to approximate coordinates.
type District struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
	Lat     float64  `yaml:"lat"`
	Lng     float64  `yaml:"lng"`
}

// WorkType maps a construction work type to the skills it requires.
type WorkType struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
	Skills  []string `yaml:"skills"`
}

// LookupTables holds the static district and work-type tables.
type LookupTables struct {
	Center        string     `yaml:"center"`
	Districts     []District `yaml:"districts"`
	DefaultSkills []string   `yaml:"default_skills"`
	WorkTypes     []WorkType `yaml:"work_types"`
}

// ParseLookupTables decodes and validates lookup tables from YAML.
func ParseLookupTables(r io.Reader) (*LookupTables, error) {
	var tables LookupTables
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&tables); err != nil {
		return nil, fmt.Errorf("decode lookup tables: %w", err)
	}
	if err := tables.validate(); err != nil {
		return nil, err
	}
	return &tables, nil
}

// LoadLookupTables reads tables from path, or returns the embedded defaults when path is empty.
func LoadLookupTables(path string) (*LookupTables, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultLookupTables(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lookup tables: %w", err)
	}
	defer f.Close()
	return ParseLookupTables(f)
}

// DefaultLookupTables returns the tables shipped with the binary.
func DefaultLookupTables() *LookupTables {
	tables, err := ParseLookupTables(bytes.NewReader(embeddedLookup))
	if err != nil {
		panic(fmt.Sprintf("embedded lookup tables are invalid: %v", err))
	}
	return tables
}

func (t *LookupTables) validate() error {
	if len(t.Districts) == 0 {
		return fmt.Errorf("lookup tables: at least one district is required")
	}
	if len(t.DefaultSkills) == 0 {
		return fmt.Errorf("lookup tables: default_skills must not be empty")
	}
	if _, ok := t.district(t.Center); !ok {
		return fmt.Errorf("lookup tables: center %q is not a listed district", t.Center)
	}
	for _, wt := range t.WorkTypes {
		if len(wt.Skills) == 0 {
			return fmt.Errorf("lookup tables: work type %q has no skills", wt.Name)
		}
	}
	return nil
}

func (t *LookupTables) district(name string) (District, bool) {
	for _, d := range t.Districts {
		if normalize(d.Name) == normalize(name) {
			return d, true
		}
	}
	return District{}, false
}

// Gazetteer resolves free-text addresses to coarse coordinates.
type Gazetteer struct {
	districts []District
	center    Point
}

// NewGazetteer builds a gazetteer over the district table.
func NewGazetteer(tables *LookupTables) *Gazetteer {
	center, _ := tables.district(tables.Center)
	return &Gazetteer{
		districts: tables.Districts,
		center:    Point{Lat: center.Lat, Lng: center.Lng},
	}
}

// Center returns the fallback city-centre point.
func (g *Gazetteer) Center() Point {
	return g.center
}

// Resolve returns the first district whose name or alias occurs in text.
func (g *Gazetteer) Resolve(text string) (Point, bool) {
	haystack := normalize(text)
	if haystack == "" {
		return g.center, false
	}
	for _, d := range g.districts {
		if containsAny(haystack, d.Name, d.Aliases...) {
			return Point{Lat: d.Lat, Lng: d.Lng}, true
		}
	}
	return g.center, false
}

// Lookup is Resolve without the match flag. It always returns a coordinate.
func (g *Gazetteer) Lookup(text string) Point {
	p, _ := g.Resolve(text)
	return p
}

// Catalog resolves the skills a job requires.
type Catalog struct {
	workTypes []WorkType
	defaults  []string
}

// NewCatalog builds a catalog over the work-type table.
func NewCatalog(tables *LookupTables) *Catalog {
	return &Catalog{workTypes: tables.WorkTypes, defaults: tables.DefaultSkills}
}

// SkillsFor returns the skills for a work type, or the default list when unknown.
func (c *Catalog) SkillsFor(workType string) []string {
	key := normalize(workType)
	for _, wt := range c.workTypes {
		if normalize(wt.Name) == key {
			return cloneStrings(wt.Skills)
		}
		for _, alias := range wt.Aliases {
			if normalize(alias) == key {
				return cloneStrings(wt.Skills)
			}
		}
	}
	return cloneStrings(c.defaults)
}

// RequiredSkills prefers the job's explicit list over the work-type table.
func (c *Catalog) RequiredSkills(job models.Job) []string {
	if len(job.RequiredSkills) > 0 {
		return cloneStrings(job.RequiredSkills)
	}
	return c.SkillsFor(job.WorkType)
}

func containsAny(haystack, first string, rest ...string) bool {
	if n := normalize(first); n != "" && strings.Contains(haystack, n) {
		return true
	}
	for _, candidate := range rest {
		if n := normalize(candidate); n != "" && strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
