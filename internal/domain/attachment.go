package domain

import (
	"encoding/json"
	"fmt"
)

// Attachment is implemented by every rich attachment a tool can produce.
// The kind discriminates rendering: citations, media and charts each get
// their own card treatment.
type Attachment interface {
	AttachmentKind() AttachmentKind
}

// AttachmentList is a slice of attachments that survives a JSON round trip.
// Interface values cannot be decoded as-is, so each element is stored in an
// envelope tagged with its kind and, for charts, the chart type.
type AttachmentList []Attachment

type attachmentEnvelope struct {
	Kind  AttachmentKind  `json:"kind"`
	Chart string          `json:"chart,omitempty"`
	Data  json.RawMessage `json:"data"`
}

func (l AttachmentList) MarshalJSON() ([]byte, error) {
	envelopes := make([]attachmentEnvelope, 0, len(l))
	for _, att := range l {
		data, err := json.Marshal(att)
		if err != nil {
			return nil, err
		}
		env := attachmentEnvelope{Kind: att.AttachmentKind(), Data: data}
		if chart, ok := att.(Chart); ok {
			env.Chart = chart.ChartType()
		}
		envelopes = append(envelopes, env)
	}
	return json.Marshal(envelopes)
}

func (l *AttachmentList) UnmarshalJSON(data []byte) error {
	var envelopes []attachmentEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return err
	}

	out := make(AttachmentList, 0, len(envelopes))
	for _, env := range envelopes {
		att, err := decodeAttachment(env)
		if err != nil {
			return err
		}
		out = append(out, att)
	}
	*l = out
	return nil
}

func decodeAttachment(env attachmentEnvelope) (Attachment, error) {
	switch env.Kind {
	case AttachmentKindCitation:
		var c Citation
		return c, json.Unmarshal(env.Data, &c)
	case AttachmentKindMedia:
		var m Media
		return m, json.Unmarshal(env.Data, &m)
	case AttachmentKindChart:
		switch env.Chart {
		case "Chart.VerticalBar":
			var c VerticalBarChart
			return c, json.Unmarshal(env.Data, &c)
		case "Chart.Line":
			var c LineChart
			return c, json.Unmarshal(env.Data, &c)
		case "Chart.Pie":
			var c PieChart
			return c, json.Unmarshal(env.Data, &c)
		default:
			return nil, fmt.Errorf("unknown chart type %q", env.Chart)
		}
	default:
		return nil, fmt.Errorf("unknown attachment kind %q", env.Kind)
	}
}

// AttachmentKind discriminates attachment types on a turn
type AttachmentKind string

const (
	AttachmentKindCitation AttachmentKind = "citation"
	AttachmentKindMedia    AttachmentKind = "media"
	AttachmentKindChart    AttachmentKind = "chart"
)

// Citation is an item retrieved from a knowledge source
type Citation struct {
	Title    string            `json:"title"`
	URL      string            `json:"url"`
	Content  string            `json:"content,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (Citation) AttachmentKind() AttachmentKind { return AttachmentKindCitation }

// Media represents a media attachment (image, video, audio)
type Media struct {
	// Content is a URL or a base64 encoded payload
	Content  string `json:"content"`
	MimeType string `json:"mime_type"`
	Label    string `json:"label,omitempty"`
}

func (Media) AttachmentKind() AttachmentKind { return AttachmentKindMedia }

// ChartColor is the palette accepted by chart cards
type ChartColor string

const (
	ChartColorGood      ChartColor = "good"
	ChartColorWarning   ChartColor = "warning"
	ChartColorAttention ChartColor = "attention"
	ChartColorNeutral   ChartColor = "neutral"

	ChartColorCategoricalRed      ChartColor = "categoricalRed"
	ChartColorCategoricalPurple   ChartColor = "categoricalPurple"
	ChartColorCategoricalLavender ChartColor = "categoricalLavender"
	ChartColorCategoricalBlue     ChartColor = "categoricalBlue"
	ChartColorCategoricalTeal     ChartColor = "categoricalTeal"
	ChartColorCategoricalGreen    ChartColor = "categoricalGreen"
	ChartColorCategoricalLime     ChartColor = "categoricalLime"
	ChartColorCategoricalMarigold ChartColor = "categoricalMarigold"

	ChartColorDivergingBlue   ChartColor = "divergingBlue"
	ChartColorDivergingTeal   ChartColor = "divergingTeal"
	ChartColorDivergingYellow ChartColor = "divergingYellow"
	ChartColorDivergingRed    ChartColor = "divergingRed"
	ChartColorDivergingGray   ChartColor = "divergingGray"
)

// Chart is the common surface of every chart attachment
type Chart interface {
	Attachment
	ChartID() string
	ChartTitle() string
	ChartType() string
}

// VerticalBarChartValue is a single bar in a vertical bar chart
type VerticalBarChartValue struct {
	Color ChartColor `json:"color,omitempty"`
	X     string     `json:"x"`
	Y     float64    `json:"y"`
}

// VerticalBarChart is a vertical bar chart attachment
type VerticalBarChart struct {
	ID    string                  `json:"id"`
	Title string                  `json:"title"`
	Data  []VerticalBarChartValue `json:"data"`
}

func (VerticalBarChart) AttachmentKind() AttachmentKind { return AttachmentKindChart }
func (c VerticalBarChart) ChartID() string              { return c.ID }
func (c VerticalBarChart) ChartTitle() string           { return c.Title }
func (VerticalBarChart) ChartType() string              { return "Chart.VerticalBar" }

// LineChartValue is a single point on a line
type LineChartValue struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
}

// LineChartSeries is one line in a line chart
type LineChartSeries struct {
	Values []LineChartValue `json:"values"`
	Color  ChartColor       `json:"color,omitempty"`
	Legend string           `json:"legend,omitempty"`
}

// LineChart is a line chart attachment
type LineChart struct {
	ID    string            `json:"id"`
	Title string            `json:"title"`
	Data  []LineChartSeries `json:"data"`
}

func (LineChart) AttachmentKind() AttachmentKind { return AttachmentKindChart }
func (c LineChart) ChartID() string              { return c.ID }
func (c LineChart) ChartTitle() string           { return c.Title }
func (LineChart) ChartType() string              { return "Chart.Line" }

// PieChartValue is a single slice of a pie chart
type PieChartValue struct {
	Value  float64    `json:"value"`
	Color  ChartColor `json:"color,omitempty"`
	Legend string     `json:"legend,omitempty"`
}

// PieChart is a pie chart attachment
type PieChart struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Data  []PieChartValue `json:"data"`
}

func (PieChart) AttachmentKind() AttachmentKind { return AttachmentKindChart }
func (c PieChart) ChartID() string              { return c.ID }
func (c PieChart) ChartTitle() string           { return c.Title }
func (PieChart) ChartType() string              { return "Chart.Pie" }

// ValidateCitation validates a Citation instance
func ValidateCitation(c *Citation) error {
	if c == nil {
		return ErrMissingRequiredField
	}
	if c.Title == "" || c.URL == "" {
		return ErrMissingRequiredField
	}
	return nil
}

// ValidateMedia validates a Media instance
func ValidateMedia(m *Media) error {
	if m == nil {
		return ErrMissingRequiredField
	}
	if m.Content == "" || m.MimeType == "" {
		return ErrMissingRequiredField
	}
	return nil
}
