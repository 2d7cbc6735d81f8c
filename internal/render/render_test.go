package render

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestRenderScalarSingleValue(t *testing.T) {
	tests := []struct {
		column string
		value  any
		header string
		want   string
	}{
		{"total_revenue", 1234.5, "💰 Total Revenue", "$1,234.50"},
		{"average_rating", 4.267, "⭐ Average Rating", "⭐⭐⭐⭐ (4.27)"},
		{"total_count", int64(15230), "🔢 Total Count", "15,230 items"},
		{"median", 12.0, "📊 Median", "12.00"},
	}
	for _, tt := range tests {
		payload := Render([]string{tt.column}, [][]any{{tt.value}}, "anything")
		if payload.Kind != KindScalar {
			t.Fatalf("%s: Kind = %q", tt.column, payload.Kind)
		}
		if payload.Header != tt.header || payload.Value != tt.want {
			t.Fatalf("%s: header/value = %q/%q, want %q/%q", tt.column, payload.Header, payload.Value, tt.header, tt.want)
		}
	}
}

func TestRenderTotalSalesIsScalarStyle(t *testing.T) {
	payload := Render([]string{"total_revenue", "total_sales"}, [][]any{{98765.4, int64(1200)}}, "total sales")
	if payload.Kind != KindScalar {
		t.Fatalf("Kind = %q, want scalar", payload.Kind)
	}
	if payload.Header != "💰 Total Revenue" || payload.Value != "$98,765.40" {
		t.Fatalf("payload = %+v", payload)
	}
	if len(payload.Fields) != 1 || payload.Fields[0] != (Field{Name: "Total Sales", Value: "1,200.00"}) {
		t.Fatalf("Fields = %+v", payload.Fields)
	}
	text := payload.Text()
	if !strings.Contains(text, "*$98,765.40*") || !strings.Contains(text, "*Total Sales:* 1,200.00") {
		t.Fatalf("Text() = %q", text)
	}
}

func TestRenderRowsCapsAtTenWithFooter(t *testing.T) {
	rows := make([][]any, 25)
	for i := range rows {
		rows[i] = []any{fmt.Sprintf("Product %d", i), float64(i) * 100}
	}
	payload := Render([]string{"product_name", "total_revenue"}, rows, "top products")
	if payload.Kind != KindRows || payload.Header != "🏆 Top Products" {
		t.Fatalf("payload = %+v", payload)
	}
	if len(payload.Rows) != MaxRows {
		t.Fatalf("rows = %d, want %d", len(payload.Rows), MaxRows)
	}
	if payload.Footer != "Showing 10 of 25 results" || payload.Total != 25 {
		t.Fatalf("footer/total = %q/%d", payload.Footer, payload.Total)
	}
	if payload.Rows[0][0] != (Field{Name: "Product Name", Value: "Product 0"}) {
		t.Fatalf("first field = %+v", payload.Rows[0][0])
	}
}

func TestRenderRowsWithoutFooterAtTenOrFewer(t *testing.T) {
	rows := make([][]any, 10)
	for i := range rows {
		rows[i] = []any{"UK", 1.0}
	}
	payload := Render([]string{"country", "total_revenue"}, rows, "sales by country")
	if payload.Footer != "" || len(payload.Rows) != 10 || payload.Header != "🌍 Sales by Country" {
		t.Fatalf("payload = %+v", payload)
	}
	if strings.Count(payload.Text(), divider) != 9 {
		t.Fatalf("dividers = %d, want 9", strings.Count(payload.Text(), divider))
	}
}

func TestRenderEmptyResult(t *testing.T) {
	payload := Render([]string{"product_name", "revenue"}, nil, "recent sales in italy")
	if payload.Kind != KindRows || payload.Total != 0 || payload.Footer == "" || payload.Header != "🕒 Recent Sales" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestRowsHeaderKeywords(t *testing.T) {
	tests := map[string]string{
		"latest orders":             "🕒 Recent Sales",
		"top rated products":        "⭐ Product Ratings",
		"best products":             "🏆 Top Products",
		"revenue by category":       "📂 Sales by Category",
		"which countries sell most": "🌍 Sales by Country",
		"monthly trend":             "📊 Query Results",
	}
	for q, want := range tests {
		if got := rowsHeader(q); got != want {
			t.Fatalf("rowsHeader(%q) = %q, want %q", q, got, want)
		}
	}
}

func TestFormatValue(t *testing.T) {
	date := time.Date(2025, time.March, 7, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		column string
		value  any
		want   string
	}{
		{"revenue", nil, "N/A"},
		{"unit_price", 5.0, "$5.00"},
		{"total_revenue", "1234567.891", "$1,234,567.89"},
		{"quantity_sold", int64(12345), "12,345 units"},
		{"total_quantity", 7.0, "7 units"},
		{"review_count", int64(3), "3 items"},
		{"sale_date", date, "Mar 7, 2025"},
		{"month", "2025-03-01", "Mar 1, 2025"},
		{"month", "not a date", "not a date"},
		{"share", 1234.5, "1,234.50"},
		{"share", 0.5, "0.50"},
		{"store_id", int64(5), "5.00"},
		{"store_id", int32(-42), "-42.00"},
		{"store_id", 2500, "2,500.00"},
		{"country", int64(7), "7.00"},
		{"country_count", int64(7), "7 items"},
		{"product_name", "Desk Lamp", "Desk Lamp"},
		{"in_stock", true, "true"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.column, tt.value); got != tt.want {
			t.Fatalf("FormatValue(%q, %#v) = %q, want %q", tt.column, tt.value, got, tt.want)
		}
	}
}

func TestFormatRatingStars(t *testing.T) {
	for _, v := range []float64{-1, 0, 0.49, 0.5, 2.5, 3.2, 4.75, 5, 7.3} {
		got := FormatRating(v)
		wantStars := int(v + 0.5)
		if v < 0 {
			wantStars = 0
		}
		if wantStars > 5 {
			wantStars = 5
		}
		if stars := strings.Count(got, "⭐"); stars != wantStars {
			t.Fatalf("FormatRating(%v) stars = %d, want %d", v, stars, wantStars)
		}
		if !strings.HasSuffix(got, fmt.Sprintf("(%.2f)", v)) {
			t.Fatalf("FormatRating(%v) = %q", v, got)
		}
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	columns := []string{"category", "total_revenue", "avg_rating", "sale_date"}
	rows := [][]any{
		{"Books", 1500.25, 4.1, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"Electronics", 99.0, 3.5, nil},
	}
	first := Render(columns, rows, "sales by category").Text()
	second := Render(columns, rows, "sales by category").Text()
	if first != second {
		t.Fatalf("Render() not deterministic:\n%s\n---\n%s", first, second)
	}
}

func TestCountryColumnIsNotACount(t *testing.T) {
	payload := Render([]string{"country"}, [][]any{{"Germany"}}, "which country sells most")
	if payload.Kind != KindScalar || payload.Header != "📊 Country" || payload.Value != "Germany" {
		t.Fatalf("payload = %+v", payload)
	}
}
