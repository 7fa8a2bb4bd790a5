package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/skillforge/skillbridge/internal/mcp/middleware"
	"github.com/skillforge/skillbridge/internal/skills"
)

// CatalogURI identifies the active skill catalog resource.
const CatalogURI = "skills://catalog"

// CatalogEntry is the JSON form of one active skill.
type CatalogEntry struct {
	SkillID     string   `json:"skillId"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Image       string   `json:"image,omitempty"`
	Creator     string   `json:"creator"`
	PricePerUse string   `json:"pricePerUse"`
	Price       string   `json:"price"`
	TotalCalls  string   `json:"totalCalls"`
	MetadataURI string   `json:"metadataUri,omitempty"`
}

func catalogResource() mcp.Resource {
	return mcp.NewResource(CatalogURI, "SkillForge skill catalog",
		mcp.WithResourceDescription("Active skills currently exposed as tools"),
		mcp.WithMIMEType("application/json"),
	)
}

// Catalog converts active skills to catalog entries.
func Catalog(active []skills.Skill) []CatalogEntry {
	entries := make([]CatalogEntry, 0, len(active))
	for _, s := range active {
		entries = append(entries, CatalogEntry{
			SkillID:     s.Key(),
			Name:        s.Name,
			Description: s.Description,
			Category:    s.Category,
			Tags:        s.Tags,
			Image:       s.Image,
			Creator:     s.Creator,
			PricePerUse: intString(s.PricePerUse),
			Price:       skills.FormatPrice(s.PricePerUse),
			TotalCalls:  intString(s.TotalCalls),
			MetadataURI: s.MetadataURI,
		})
	}
	return entries
}

func (s *Server) handleCatalog(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	start := time.Now()

	src := s.statusSource()
	if src == nil {
		err := errors.New("catalog not available yet")
		s.hooks.OnResourceRead(ctx, middleware.SessionID(ctx), req.Params.URI, time.Since(start), err)
		return nil, err
	}

	data, err := json.MarshalIndent(Catalog(src.Active()), "", "  ")
	s.hooks.OnResourceRead(ctx, middleware.SessionID(ctx), req.Params.URI, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
