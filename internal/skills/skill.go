package skills

import (
	"fmt"
	"math/big"
	"slices"

	"github.com/skillforge/skillbridge/internal/metadata"
)

const (
	DefaultDescription = "No description available"
	DefaultCategory    = "General"
)

// Record is a skill entry exactly as the registry contract reports it.
type Record struct {
	ID          *big.Int
	Creator     string
	PricePerUse *big.Int
	MetadataURI string
	IsActive    bool
	TotalCalls  *big.Int
}

// Key returns the cache key for the record (the decimal skill id).
func (r Record) Key() string {
	if r.ID == nil {
		return "0"
	}
	return r.ID.String()
}

func (r Record) clone() Record {
	out := r
	out.ID = cloneInt(r.ID)
	out.PricePerUse = cloneInt(r.PricePerUse)
	out.TotalCalls = cloneInt(r.TotalCalls)
	return out
}

// Skill is a registry record enriched with its off-chain descriptor.
// Values are snapshots: every accessor hands out a deep copy.
type Skill struct {
	Record
	Name        string
	Description string
	Category    string
	Image       string
	Tags        []string
}

// Defaults builds the enriched form of rec used when no descriptor is available.
func Defaults(rec Record) Skill {
	return Skill{
		Record:      rec.clone(),
		Name:        fmt.Sprintf("Skill #%s", rec.Key()),
		Description: DefaultDescription,
		Category:    DefaultCategory,
		Tags:        []string{},
	}
}

// Overlay copies every field present in doc over s.
func (s Skill) Overlay(doc *metadata.Document) Skill {
	if doc == nil {
		return s
	}
	if doc.Name != "" {
		s.Name = doc.Name
	}
	if doc.Description != "" {
		s.Description = doc.Description
	}
	if doc.Category != "" {
		s.Category = doc.Category
	}
	if doc.Image != "" {
		s.Image = doc.Image
	}
	if doc.Tags != nil {
		s.Tags = slices.Clone(doc.Tags)
	}
	return s
}

// Clone returns a deep copy of s.
func (s Skill) Clone() Skill {
	out := s
	out.Record = s.Record.clone()
	out.Tags = slices.Clone(s.Tags)
	if out.Tags == nil {
		out.Tags = []string{}
	}
	return out
}

// Active returns the skills with IsActive set, in their original order.
func Active(all []Skill) []Skill {
	out := make([]Skill, 0, len(all))
	for _, s := range all {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
