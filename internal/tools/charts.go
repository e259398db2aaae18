package tools

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kernelworks/kernelbot/internal/domain"
)

type verticalBarChartArgs struct {
	Title string                         `json:"title"`
	Data  []domain.VerticalBarChartValue `json:"data"`
}

type lineChartArgs struct {
	Title string                   `json:"title"`
	Data  []domain.LineChartSeries `json:"data"`
}

type pieChartArgs struct {
	Title string                 `json:"title"`
	Data  []domain.PieChartValue `json:"data"`
}

// NewVerticalBarChartTool builds vertical bar chart attachments
func NewVerticalBarChartTool() Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{"type": "string", "description": "Title of the chart"},
			"data": map[string]any{
				"type":        "array",
				"description": "One entry per bar",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"x":     map[string]any{"type": "string", "description": "X-axis label"},
						"y":     map[string]any{"type": "number", "description": "Bar height"},
						"color": map[string]any{"type": "string", "description": "Optional bar color"},
					},
					"required": []string{"x", "y"},
				},
			},
		},
		"required": []string{"title", "data"},
	}

	return NewTyped("CreateVerticalBarChart",
		"Generate a vertical bar chart. The chart is included automatically in the response.",
		schema,
		func(ctx context.Context, args verticalBarChartArgs) (any, error) {
			if err := validateChart(args.Title, len(args.Data)); err != nil {
				return nil, err
			}
			return domain.VerticalBarChart{
				ID:    uuid.NewString(),
				Title: args.Title,
				Data:  args.Data,
			}, nil
		})
}

// NewLineChartTool builds line chart attachments
func NewLineChartTool() Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{"type": "string", "description": "Title of the chart"},
			"data": map[string]any{
				"type":        "array",
				"description": "One entry per line; each line holds its points, color and legend",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"values": map[string]any{
							"type":        "array",
							"description": "Points of the line",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"x": map[string]any{"type": "string", "description": "X-axis value"},
									"y": map[string]any{"type": "number", "description": "Y-axis value"},
								},
								"required": []string{"x", "y"},
							},
						},
						"color":  map[string]any{"type": "string", "description": "Optional line color"},
						"legend": map[string]any{"type": "string", "description": "Optional legend label"},
					},
					"required": []string{"values"},
				},
			},
		},
		"required": []string{"title", "data"},
	}

	return NewTyped("CreateLineChart",
		"Generate a stacked line chart. The chart is included automatically in the response.",
		schema,
		func(ctx context.Context, args lineChartArgs) (any, error) {
			if err := validateChart(args.Title, len(args.Data)); err != nil {
				return nil, err
			}
			return domain.LineChart{
				ID:    uuid.NewString(),
				Title: args.Title,
				Data:  args.Data,
			}, nil
		})
}

// NewPieChartTool builds pie chart attachments
func NewPieChartTool() Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{"type": "string", "description": "Title of the chart"},
			"data": map[string]any{
				"type":        "array",
				"description": "One entry per slice",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"value":  map[string]any{"type": "number", "description": "Slice value"},
						"color":  map[string]any{"type": "string", "description": "Optional slice color"},
						"legend": map[string]any{"type": "string", "description": "Optional legend label"},
					},
					"required": []string{"value"},
				},
			},
		},
		"required": []string{"title", "data"},
	}

	return NewTyped("CreatePieChart",
		"Generate a pie chart. The chart is included automatically in the response.",
		schema,
		func(ctx context.Context, args pieChartArgs) (any, error) {
			if err := validateChart(args.Title, len(args.Data)); err != nil {
				return nil, err
			}
			return domain.PieChart{
				ID:    uuid.NewString(),
				Title: args.Title,
				Data:  args.Data,
			}, nil
		})
}

func validateChart(title string, points int) error {
	if title == "" {
		return fmt.Errorf("chart title is required")
	}
	if points == 0 {
		return fmt.Errorf("chart data is required")
	}
	return nil
}
