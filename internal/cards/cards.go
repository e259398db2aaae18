// Package cards renders assistant turns as Adaptive Card activities.
package cards

import (
	"encoding/json"

	"github.com/kernelworks/kernelbot/internal/activity"
	"github.com/kernelworks/kernelbot/internal/domain"
)

const (
	cardSchema       = "http://adaptivecards.io/schemas/adaptive-card.json"
	cardFallbackText = "This card requires Adaptive Cards v1.2 support to be rendered properly."

	chevronDownURL = "https://adaptivecards.io/content/down.png"
	chevronUpURL   = "https://adaptivecards.io/content/up.png"
)

// Element is an untyped Adaptive Card element
type Element = map[string]any

// CitationElement renders a citation as a linked text block with its
// metadata in a code block.
func CitationElement(c domain.Citation) Element {
	snippet := ""
	if len(c.Metadata) > 0 {
		if raw, err := json.Marshal(c.Metadata); err == nil {
			snippet = string(raw)
		}
	}

	return Element{
		"type": "Container",
		"items": []Element{
			{
				"type": "TextBlock",
				"text": "[" + c.Title + "](" + c.URL + ")",
				"wrap": true,
				"size": "Medium",
			},
			{
				"type":        "CodeBlock",
				"codeSnippet": snippet,
				"language":    "Json",
			},
		},
	}
}

// MediaElement renders a media attachment
func MediaElement(m domain.Media) Element {
	label := m.Label
	if label == "" {
		label = "Media Attachment"
	}

	return Element{
		"type": "Media",
		"sources": []Element{
			{
				"mimeType": m.MimeType,
				"url":      m.Content,
				"label":    label,
			},
		},
	}
}

// ChartElement renders a chart attachment as its typed chart card
func ChartElement(c domain.Chart) Element {
	return Element{
		"id":    c.ChartID(),
		"type":  c.ChartType(),
		"title": c.ChartTitle(),
		"data":  chartData(c),
	}
}

func chartData(c domain.Chart) any {
	switch chart := c.(type) {
	case domain.VerticalBarChart:
		return chart.Data
	case domain.LineChart:
		return chart.Data
	case domain.PieChart:
		return chart.Data
	default:
		return nil
	}
}

// ExpandableBlock wraps elements in a collapsed toggle-visibility container
func ExpandableBlock(id, title string, elements []Element) Element {
	return Element{
		"type": "Container",
		"items": []Element{
			{
				"type": "ColumnSet",
				"columns": []Element{
					{
						"type": "Column",
						"items": []Element{
							{
								"type": "TextBlock",
								"text": title,
								"wrap": true,
								"size": "Medium",
							},
						},
						"width": "stretch",
					},
					{
						"type":                     "Column",
						"id":                       "chevronDown" + id,
						"spacing":                  "Small",
						"verticalContentAlignment": "Center",
						"items": []Element{
							{
								"type":    "Image",
								"url":     chevronDownURL,
								"width":   "20px",
								"altText": "collapsed",
							},
						},
						"width":     "auto",
						"isVisible": false,
					},
					{
						"type":                     "Column",
						"id":                       "chevronUp" + id,
						"spacing":                  "Small",
						"verticalContentAlignment": "Center",
						"items": []Element{
							{
								"type":    "Image",
								"url":     chevronUpURL,
								"width":   "20px",
								"altText": "expanded",
							},
						},
						"width": "auto",
					},
				},
				"selectAction": Element{
					"type": "Action.ToggleVisibility",
					"targetElements": []string{
						"cardContent" + id,
						"chevronUp" + id,
						"chevronDown" + id,
					},
				},
			},
			{
				"type": "Container",
				"id":   "cardContent" + id,
				"items": []Element{
					{
						"type": "Container",
						"fallback": Element{
							"type": "TextBlock",
							"text": "The elements for this block aren't supported.",
							"wrap": true,
						},
						"items": elements,
					},
				},
				"isVisible": false,
			},
		},
		"separator": true,
		"spacing":   "Small",
	}
}

// ActivityCard builds the reply activity for an assistant turn. Attachments
// are grouped into expandable blocks; turns without attachments yield a
// plain text activity.
func ActivityCard(turn domain.Turn) *activity.Activity {
	var citations, media, charts []Element

	for _, att := range turn.Attachments {
		switch v := att.(type) {
		case domain.Citation:
			citations = append(citations, CitationElement(v))
		case domain.Media:
			media = append(media, MediaElement(v))
		case domain.Chart:
			charts = append(charts, ChartElement(v))
		}
	}

	reply := activity.NewMessage(turn.Content)
	if len(citations) == 0 && len(media) == 0 && len(charts) == 0 {
		return reply
	}

	var body []Element
	if len(citations) > 0 {
		body = append(body, ExpandableBlock("Citations", "Citations", citations))
	}
	if len(media) > 0 {
		body = append(body, ExpandableBlock("Media", "Media Attachments", media))
	}
	if len(charts) > 0 {
		body = append(body, ExpandableBlock("Charts", "Charts", charts))
	}

	card := Element{
		"type":         "AdaptiveCard",
		"body":         body,
		"$schema":      cardSchema,
		"fallbackText": cardFallbackText,
	}

	reply.Attachments = []activity.Attachment{activity.AdaptiveCardAttachment(card)}
	return reply
}
