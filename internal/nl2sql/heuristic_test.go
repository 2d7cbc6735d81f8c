package nl2sql

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/salesbot/salesbot/internal/chart"
	"github.com/salesbot/salesbot/internal/schema"
	"github.com/salesbot/salesbot/internal/sqlguard"
)

func TestHeuristicTotalSales(t *testing.T) {
	res, err := NewHeuristic(nil).Translate(context.Background(), "  Total Sales ")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	want := "SELECT ROUND(SUM(revenue), 2) as total_revenue, COUNT(*) as total_sales FROM sales_data"
	if res.SQL != want {
		t.Fatalf("SQL = %q, want %q", res.SQL, want)
	}
	if res.Source != SourceHeuristic || res.Rule != "total_sales" {
		t.Fatalf("Source/Rule = %q/%q", res.Source, res.Rule)
	}
	if res.ChartKind != chart.KindNone {
		t.Fatalf("ChartKind = %q", res.ChartKind)
	}
}

func TestHeuristicBestSellingWithCategoryAndLimit(t *testing.T) {
	res, err := NewHeuristic(nil).Translate(context.Background(), "top 5 best-selling products in electronics")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	for _, want := range []string{"category = 'Electronics'", "ORDER BY SUM(quantity_sold) DESC", "LIMIT 5"} {
		if !strings.Contains(res.SQL, want) {
			t.Fatalf("SQL %q missing %q", res.SQL, want)
		}
	}
	if res.Rule != "best_selling_products" {
		t.Fatalf("Rule = %q", res.Rule)
	}
}

func TestHeuristicRuleSelection(t *testing.T) {
	tests := []struct {
		question string
		rule     string
	}{
		{"sales by category", "sales_by_category"},
		{"revenue per country", "sales_by_country"},
		{"what are our best selling products", "best_selling_products"},
		{"top products", "top_products"},
		{"top rated products in books", "top_rated_products"},
		{"average rating by category", "rating_by_category"},
		{"what is the average rating", "average_rating"},
		{"monthly revenue trend", "monthly_trend"},
		{"show the latest sales", "recent_sales"},
		{"how many sales in japan", "count"},
		{"count of orders in germany", "count"},
		{"what is the number of sales", "count"},
		{"which country sold the most", "total_sales"},
		{"average order revenue", "average_revenue"},
		{"sales in germany", "total_sales"},
		{"electronics in canada", "total_sales"},
	}
	h := NewHeuristic(nil)
	for _, tt := range tests {
		res, err := h.Translate(context.Background(), tt.question)
		if err != nil {
			t.Fatalf("Translate(%q) error = %v", tt.question, err)
		}
		if res.Rule != tt.rule {
			t.Fatalf("Translate(%q) rule = %q, want %q (sql=%s)", tt.question, res.Rule, tt.rule, res.SQL)
		}
	}
}

func TestHeuristicNoMatch(t *testing.T) {
	for _, q := range []string{"", "   ", "what's the airspeed of a swallow", "which country buys the most", "orders per country"} {
		if _, err := NewHeuristic(nil).Translate(context.Background(), q); !errors.Is(err, ErrNoMatch) {
			t.Fatalf("Translate(%q) error = %v, want ErrNoMatch", q, err)
		}
	}
}

func TestHeuristicFiltersAreExactlyCased(t *testing.T) {
	questions := map[string][]string{
		"revenue in the united states":            {"country = 'USA'"},
		"sales for uk":                            {"country = 'UK'"},
		"home and kitchen sales in france":        {"category = 'Home & Kitchen'", "country = 'France'"},
		"how many toys were sold in germany":      {"category = 'Toys & Games'", "country = 'Germany'"},
		"top products for musical instruments":    {"category = 'Musical Instruments'"},
		"total revenue for beauty products japan": {"category = 'Beauty & Personal Care'", "country = 'Japan'"},
		"recent pet supplies sales in canada":     {"category = 'Pet Supplies'", "country = 'Canada'"},
	}
	h := NewHeuristic(nil)
	for q, wants := range questions {
		res, err := h.Translate(context.Background(), q)
		if err != nil {
			t.Fatalf("Translate(%q) error = %v", q, err)
		}
		for _, want := range wants {
			if !strings.Contains(res.SQL, want) {
				t.Fatalf("Translate(%q) SQL %q missing %q", q, res.SQL, want)
			}
		}
	}
}

func TestExtractFiltersOnlyKnowsSixCountries(t *testing.T) {
	if f := ExtractFilters("sales in brazil"); f.Country != "" {
		t.Fatalf("Country = %q, want empty", f.Country)
	}
	if f := ExtractFilters("competitor sales"); f.Category != "" {
		t.Fatalf("Category = %q, want empty for a partial word", f.Category)
	}
}

func TestExtractFiltersLimit(t *testing.T) {
	tests := map[string]int{
		"top products":          10,
		"top 3 products":        3,
		"5 best products":       5,
		"top 500 products":      maxLimit,
		"top 0 products please": 10,
	}
	for q, want := range tests {
		if got := ExtractFilters(q).Limit; got != want {
			t.Fatalf("ExtractFilters(%q).Limit = %d, want %d", q, got, want)
		}
	}
}

func TestAliasesResolveToEnumeratedValues(t *testing.T) {
	for _, a := range categoryAliases {
		if !schema.IsCategory(a.value) {
			t.Fatalf("category alias value %q is not enumerated", a.value)
		}
	}
	for _, a := range countryAliases {
		if !schema.IsCountry(a.value) {
			t.Fatalf("country alias value %q is not enumerated", a.value)
		}
	}
}

func TestDetectChartKind(t *testing.T) {
	tests := map[string]chart.Kind{
		"sales by category":                chart.KindNone,
		"sales by category chart":          chart.KindBar,
		"graph of revenue":                 chart.KindBar,
		"pie chart of sales by country":    chart.KindPie,
		"line graph of monthly revenue":    chart.KindLine,
		"visualize the revenue by country": chart.KindBar,
	}
	for q, want := range tests {
		if got := DetectChartKind(q); got != want {
			t.Fatalf("DetectChartKind(%q) = %q, want %q", q, got, want)
		}
	}
}

func TestEveryRulePassesTheGuard(t *testing.T) {
	filterSets := []Filters{
		{Limit: 10},
		{Category: "Home & Kitchen", Limit: 5},
		{Country: "UK", Limit: 3},
		{Category: "Electronics", Country: "USA", Limit: 10},
	}
	for _, rule := range DefaultRules {
		for _, f := range filterSets {
			sql := rule.Build(f)
			if _, err := sqlguard.Validate(sql); err != nil {
				t.Fatalf("rule %s: Validate(%q) error = %v", rule.Name, sql, err)
			}
		}
	}
}

func TestPromptPatternsPassTheGuard(t *testing.T) {
	for _, pattern := range queryPatterns {
		if _, err := sqlguard.Validate(pattern.Template); err != nil {
			t.Fatalf("pattern %s: Validate(%q) error = %v", pattern.Name, pattern.Template, err)
		}
	}
}
