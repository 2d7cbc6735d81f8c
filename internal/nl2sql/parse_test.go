package nl2sql

import (
	"errors"
	"testing"

	"github.com/salesbot/salesbot/internal/chart"
)

func TestParseModelOutput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		sql  string
		kind chart.Kind
	}{
		{
			name: "plain",
			raw:  `{"sql":"SELECT COUNT(*) FROM sales_data","chartType":null,"explanation":"Counts rows"}`,
			sql:  "SELECT COUNT(*) FROM sales_data",
			kind: chart.KindNone,
		},
		{
			name: "fenced",
			raw:  "```json\n{\"sql\": \"SELECT country FROM sales_data\", \"chartType\": \"PIE\", \"explanation\": \"\"}\n```",
			sql:  "SELECT country FROM sales_data",
			kind: chart.KindPie,
		},
		{
			name: "prose around object",
			raw:  "Here you go: {\"sql\": \"SELECT 1 FROM sales_data WHERE product_name = '{x}'\", \"chartType\": \"line\"} hope it helps",
			sql:  "SELECT 1 FROM sales_data WHERE product_name = '{x}'",
			kind: chart.KindLine,
		},
		{
			name: "missing chart type",
			raw:  `{"sql":" SELECT revenue FROM sales_data "}`,
			sql:  "SELECT revenue FROM sales_data",
			kind: chart.KindNone,
		},
	}
	for _, tt := range tests {
		got, err := parseModelOutput(tt.raw)
		if err != nil {
			t.Fatalf("%s: parseModelOutput() error = %v", tt.name, err)
		}
		if got.SQL != tt.sql || got.ChartKind != tt.kind {
			t.Fatalf("%s: parseModelOutput() = %+v", tt.name, got)
		}
	}
}

func TestParseModelOutputRejectsMalformed(t *testing.T) {
	tests := map[string]string{
		"no json":        "SELECT * FROM sales_data",
		"unterminated":   `{"sql": "SELECT 1"`,
		"unknown field":  `{"sql":"SELECT 1","confidence":0.9}`,
		"empty sql":      `{"sql":"   ","chartType":"bar"}`,
		"bad chart type": `{"sql":"SELECT 1","chartType":"scatter"}`,
		"wrong sql type": `{"sql":42}`,
	}
	for name, raw := range tests {
		_, err := parseModelOutput(raw)
		if !errors.Is(err, ErrMalformedOutput) {
			t.Fatalf("%s: parseModelOutput() error = %v, want ErrMalformedOutput", name, err)
		}
	}
}
