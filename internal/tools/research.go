package tools

import (
	"context"

	"github.com/kernelworks/kernelbot/internal/domain"
)

// Researcher answers a query with citations. The pgvector-backed
// implementation lives in internal/service; the static one serves fixture
// citations when no database is configured.
type Researcher interface {
	Research(ctx context.Context, query string) (string, []domain.Citation, error)
}

// ResearchResult is the value returned to the model by the Research tool
type ResearchResult struct {
	Answer    string            `json:"answer"`
	Citations []domain.Citation `json:"citations"`
}

// StaticResearcher serves fixture citations
type StaticResearcher struct{}

func (StaticResearcher) Research(ctx context.Context, query string) (string, []domain.Citation, error) {
	citations := []domain.Citation{
		{
			Title:    "Harry Potter",
			URL:      "https://harrypotter.fandom.com/wiki/Harry_Potter",
			Metadata: map[string]string{"birthday": "1980-07-31", "house": "Gryffindor", "blood_status": "Half-blood"},
		},
		{
			Title:    "Hermione Granger",
			URL:      "https://harrypotter.fandom.com/wiki/Hermione_Granger",
			Metadata: map[string]string{"birthday": "1979-09-19", "house": "Gryffindor", "blood_status": "Muggle-born"},
		},
		{
			Title:    "Ron Weasley",
			URL:      "https://harrypotter.fandom.com/wiki/Ron_Weasley",
			Metadata: map[string]string{"birthday": "1980-03-01", "house": "Gryffindor", "blood_status": "Pure-blood"},
		},
	}
	return "Blood and Gold finished today", citations, nil
}

type researchArgs struct {
	Query string `json:"query"`
}

// NewResearchTool searches the knowledge base and returns cited results
func NewResearchTool(researcher Researcher) Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "The query to research"},
		},
		"required": []string{"query"},
	}

	return NewTyped("Research", "Search the knowledge base for information to answer the question.",
		schema,
		func(ctx context.Context, args researchArgs) (any, error) {
			answer, citations, err := researcher.Research(ctx, args.Query)
			if err != nil {
				return nil, err
			}
			return ResearchResult{Answer: answer, Citations: citations}, nil
		})
}
