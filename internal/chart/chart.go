// Package chart builds QuickChart URLs for query results. Nothing here does
// network I/O; the chat client fetches the image.
package chart

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	DefaultBaseURL     = "https://quickchart.io"
	DefaultWidth       = 600
	DefaultHeight      = 400
	DefaultLabelBudget = 20
	MaxPoints          = 10

	ellipsis         = "..."
	pieLegendMaxRows = 6
)

var ErrNotChartable = errors.New("result cannot be charted")

var (
	labelKeywords = []string{"category", "country", "product", "name"}
	valueKeywords = []string{"revenue", "total", "count", "rating", "sales", "quantity"}
)

var (
	barPalette = []string{
		"rgba(54, 162, 235, 0.8)", "rgba(75, 192, 192, 0.8)", "rgba(153, 102, 255, 0.8)",
		"rgba(255, 159, 64, 0.8)", "rgba(255, 99, 132, 0.8)", "rgba(255, 205, 86, 0.8)",
		"rgba(201, 203, 207, 0.8)", "rgba(46, 204, 113, 0.8)", "rgba(231, 76, 60, 0.8)",
		"rgba(52, 73, 94, 0.8)",
	}
	piePalette = []string{
		"#FF6384", "#36A2EB", "#FFCE56", "#4BC0C0", "#9966FF",
		"#FF9F40", "#C9CBCF", "#2ECC71", "#E74C3C", "#34495E",
	}
	lineColor = "rgb(54, 162, 235)"
)

type Config struct {
	BaseURL     string
	Width       int
	Height      int
	LabelBudget int
}

type Spec struct {
	Type    string         `json:"type"`
	Data    Data           `json:"data"`
	Options map[string]any `json:"options"`
}

type Data struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

type Dataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor any       `json:"backgroundColor,omitempty"`
	BorderColor     string    `json:"borderColor,omitempty"`
	Fill            *bool     `json:"fill,omitempty"`
	PointRadius     int       `json:"pointRadius,omitempty"`
}

type Renderer struct {
	cfg Config
}

func NewRenderer(cfg Config) *Renderer {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultHeight
	}
	if cfg.LabelBudget <= 0 {
		cfg.LabelBudget = DefaultLabelBudget
	}
	return &Renderer{cfg: cfg}
}

// URL renders the chart spec into a QuickChart image URL.
func (r *Renderer) URL(kind Kind, columns []string, rows [][]any, question string) (string, error) {
	spec, err := r.Spec(kind, columns, rows, question)
	if err != nil {
		return "", err
	}
	encoded, err := json.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("encode chart spec: %w", err)
	}
	return fmt.Sprintf("%s/chart?c=%s&w=%d&h=%d",
		r.cfg.BaseURL,
		strings.ReplaceAll(url.QueryEscape(string(encoded)), "+", "%20"),
		r.cfg.Width,
		r.cfg.Height,
	), nil
}

// Spec builds the chart description for at most the first MaxPoints rows.
func (r *Renderer) Spec(kind Kind, columns []string, rows [][]any, question string) (Spec, error) {
	if kind == KindNone {
		return Spec{}, fmt.Errorf("%w: no chart kind", ErrNotChartable)
	}
	if len(columns) < 2 || len(rows) == 0 {
		return Spec{}, fmt.Errorf("%w: need at least two columns and one row", ErrNotChartable)
	}
	if len(rows) > MaxPoints {
		rows = rows[:MaxPoints]
	}

	labelIdx, valueIdx := SelectColumns(columns)
	labels := make([]string, len(rows))
	values := make([]float64, len(rows))
	for i, row := range rows {
		labels[i] = TruncateLabel(labelString(cell(row, labelIdx)), r.cfg.LabelBudget)
		values[i] = toFloat(cell(row, valueIdx))
	}
	title := strings.TrimSpace(question)
	seriesLabel := humanize(columns[valueIdx])

	switch kind {
	case KindPie:
		labels, values = positiveSlices(labels, values)
		if len(values) == 0 {
			return Spec{}, fmt.Errorf("%w: no positive values for a pie chart", ErrNotChartable)
		}
		return pieSpec(labels, values, seriesLabel, title), nil
	case KindLine:
		return lineSpec(labels, values, seriesLabel, title), nil
	default:
		return barSpec(labels, values, seriesLabel, title), nil
	}
}

// SelectColumns picks the label and value column indexes by name. The value
// column is never the label column when there is more than one column.
func SelectColumns(columns []string) (labelIdx, valueIdx int) {
	labelIdx = indexOfKeyword(columns, labelKeywords, -1)
	if labelIdx < 0 {
		labelIdx = 0
	}
	valueIdx = indexOfKeyword(columns, valueKeywords, labelIdx)
	if valueIdx < 0 {
		valueIdx = len(columns) - 1
		if valueIdx == labelIdx && len(columns) > 1 {
			valueIdx = 0
		}
	}
	return labelIdx, valueIdx
}

// indexOfKeyword returns the first column other than skip whose name contains
// one of keywords, or -1.
func indexOfKeyword(columns []string, keywords []string, skip int) int {
	for i, column := range columns {
		if i == skip {
			continue
		}
		lower := strings.ToLower(column)
		for _, keyword := range keywords {
			if strings.Contains(lower, keyword) {
				return i
			}
		}
	}
	return -1
}

// positiveSlices drops rows whose value cannot be drawn as a pie slice.
func positiveSlices(labels []string, values []float64) ([]string, []float64) {
	keptLabels := make([]string, 0, len(labels))
	keptValues := make([]float64, 0, len(values))
	for i, v := range values {
		if v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0) {
			keptLabels = append(keptLabels, labels[i])
			keptValues = append(keptValues, v)
		}
	}
	return keptLabels, keptValues
}

// TruncateLabel shortens label to budget runes followed by "...".
func TruncateLabel(label string, budget int) string {
	runes := []rune(label)
	if budget <= 0 || len(runes) <= budget {
		return label
	}
	return string(runes[:budget]) + ellipsis
}

func pieSpec(labels []string, values []float64, seriesLabel, title string) Spec {
	var total float64
	for _, v := range values {
		total += v
	}
	shares := make([]float64, len(values))
	legend := make([]string, len(labels))
	for i, v := range values {
		if total != 0 {
			shares[i] = math.Round(v/total*1000) / 10
		}
		legend[i] = fmt.Sprintf("%s (%s%%)", labels[i], strconv.FormatFloat(shares[i], 'f', 1, 64))
	}
	position := "right"
	if len(values) > pieLegendMaxRows {
		position = "bottom"
	}
	return Spec{
		Type: string(KindPie),
		Data: Data{
			Labels: legend,
			Datasets: []Dataset{{
				Label:           seriesLabel + " (%)",
				Data:            shares,
				BackgroundColor: palette(piePalette, len(values)),
			}},
		},
		Options: map[string]any{
			"title":  titleOption(title),
			"legend": map[string]any{"position": position},
			"plugins": map[string]any{
				"datalabels": map[string]any{
					"display": true,
					"color":   "#fff",
					"font":    map[string]any{"weight": "bold"},
				},
			},
		},
	}
}

func lineSpec(labels []string, values []float64, seriesLabel, title string) Spec {
	fill := false
	return Spec{
		Type: string(KindLine),
		Data: Data{
			Labels: labels,
			Datasets: []Dataset{{
				Label:       seriesLabel,
				Data:        values,
				BorderColor: lineColor,
				Fill:        &fill,
				PointRadius: 4,
			}},
		},
		Options: map[string]any{
			"title":  titleOption(title),
			"legend": map[string]any{"display": false},
			"scales": map[string]any{
				"yAxes": []any{map[string]any{"ticks": map[string]any{"beginAtZero": true}}},
			},
			"elements": map[string]any{"point": map[string]any{"radius": 4}},
		},
	}
}

func barSpec(labels []string, values []float64, seriesLabel, title string) Spec {
	return Spec{
		Type: string(KindBar),
		Data: Data{
			Labels: labels,
			Datasets: []Dataset{{
				Label:           seriesLabel,
				Data:            values,
				BackgroundColor: palette(barPalette, len(values)),
			}},
		},
		Options: map[string]any{
			"title":  titleOption(title),
			"legend": map[string]any{"display": false},
			"scales": map[string]any{
				"yAxes": []any{map[string]any{"ticks": map[string]any{"beginAtZero": true}}},
				"xAxes": []any{map[string]any{"ticks": map[string]any{"maxRotation": 45, "minRotation": 45}}},
			},
		},
	}
}

func titleOption(title string) map[string]any {
	return map[string]any{"display": title != "", "text": title}
}

func palette(colors []string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = colors[i%len(colors)]
	}
	return out
}

func cell(row []any, idx int) any {
	if idx < 0 || idx >= len(row) {
		return nil
	}
	return row[idx]
}

func labelString(value any) string {
	switch typed := value.(type) {
	case nil:
		return "N/A"
	case string:
		return typed
	case time.Time:
		return typed.Format("2006-01-02")
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		return fmt.Sprint(typed)
	}
}

func toFloat(value any) float64 {
	switch typed := value.(type) {
	case float64:
		return typed
	case float32:
		return float64(typed)
	case int:
		return float64(typed)
	case int32:
		return float64(typed)
	case int64:
		return float64(typed)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func humanize(column string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(column, "_", " "))
}
