package nl2sql

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/salesbot/salesbot/internal/chart"
)

const (
	defaultLimit = 10
	maxLimit     = 50
)

// Filters are equality constraints recognised in a question. Values are the
// exact enumerated spellings from the schema.
type Filters struct {
	Category string
	Country  string
	Limit    int
}

// Where renders the filters as a WHERE clause, or "" when there are none.
func (f Filters) Where() string {
	var conds []string
	if f.Category != "" {
		conds = append(conds, "category = "+quoteLiteral(f.Category))
	}
	if f.Country != "" {
		conds = append(conds, "country = "+quoteLiteral(f.Country))
	}
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func (f Filters) Empty() bool {
	return f.Category == "" && f.Country == ""
}

// Rule is one row of the heuristic table. Match receives the lowercased
// question.
type Rule struct {
	Name  string
	Match func(q string, f Filters) bool
	Build func(f Filters) string
}

type alias struct {
	pattern *regexp.Regexp
	value   string
}

func wordAlias(value string, words ...string) alias {
	quoted := make([]string, len(words))
	for i, word := range words {
		quoted[i] = regexp.QuoteMeta(word)
	}
	return alias{
		pattern: regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`),
		value:   value,
	}
}

var categoryAliases = []alias{
	wordAlias("Electronics", "electronics", "electronic", "gadgets"),
	wordAlias("Clothing", "clothing", "clothes", "apparel", "fashion"),
	wordAlias("Home & Kitchen", "home & kitchen", "home and kitchen", "kitchen"),
	wordAlias("Books", "books", "book"),
	wordAlias("Sports & Outdoors", "sports & outdoors", "sports and outdoors", "sports", "sport"),
	wordAlias("Beauty & Personal Care", "beauty & personal care", "beauty", "personal care", "cosmetics"),
	wordAlias("Toys & Games", "toys & games", "toys and games", "toys", "toy", "games"),
	wordAlias("Automotive", "automotive", "car parts"),
	wordAlias("Health & Household", "health & household", "health and household", "health", "household"),
	wordAlias("Grocery", "grocery", "groceries"),
	wordAlias("Office Products", "office products", "office supplies", "office"),
	wordAlias("Pet Supplies", "pet supplies", "pet", "pets"),
	wordAlias("Jewelry", "jewelry", "jewellery"),
	wordAlias("Garden & Outdoor", "garden & outdoor", "garden and outdoor", "garden", "gardening"),
	wordAlias("Musical Instruments", "musical instruments", "musical instrument", "instruments"),
}

// Only six countries are recognised here. The model path covers the rest.
var countryAliases = []alias{
	wordAlias("USA", "usa", "united states", "america"),
	wordAlias("UK", "uk", "united kingdom", "britain"),
	wordAlias("Canada", "canada"),
	wordAlias("Germany", "germany"),
	wordAlias("France", "france"),
	wordAlias("Japan", "japan"),
}

var (
	topNPattern  = regexp.MustCompile(`\btop\s+(\d+)\b`)
	nBestPattern = regexp.MustCompile(`\b(\d+)\s+(?:best|top|most|highest)\b`)
)

// ExtractFilters pulls category, country and limit out of a lowercased question.
func ExtractFilters(q string) Filters {
	f := Filters{Limit: defaultLimit}
	for _, a := range categoryAliases {
		if a.pattern.MatchString(q) {
			f.Category = a.value
			break
		}
	}
	for _, a := range countryAliases {
		if a.pattern.MatchString(q) {
			f.Country = a.value
			break
		}
	}
	for _, pattern := range []*regexp.Regexp{topNPattern, nBestPattern} {
		if m := pattern.FindStringSubmatch(q); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				f.Limit = min(n, maxLimit)
			}
			break
		}
	}
	return f
}

// DetectChartKind returns KindNone unless the question asks for a visual.
func DetectChartKind(q string) chart.Kind {
	if !containsAny(q, "chart", "graph", "visualiz") {
		return chart.KindNone
	}
	switch {
	case strings.Contains(q, "pie"):
		return chart.KindPie
	case strings.Contains(q, "line"):
		return chart.KindLine
	default:
		return chart.KindBar
	}
}

var (
	recentPattern = regexp.MustCompile(`\b(?:recent|latest|last|newest)\b`)
	trendPattern  = regexp.MustCompile(`\b(?:trend|trends|monthly|over time|by month|per month)\b`)
	countPattern  = regexp.MustCompile(`\b(?:how many|count|number of)\b`)
)

// DefaultRules is evaluated top to bottom; the first match wins.
var DefaultRules = []Rule{
	{
		Name: "rating_by_category",
		Match: func(q string, _ Filters) bool {
			return strings.Contains(q, "rating") && strings.Contains(q, "categor")
		},
		Build: func(f Filters) string {
			return "SELECT category, ROUND(AVG(rating), 2) as avg_rating, COUNT(*) as review_count FROM sales_data" +
				f.Where() + " GROUP BY category ORDER BY avg_rating DESC"
		},
	},
	{
		Name: "sales_by_category",
		Match: func(q string, _ Filters) bool {
			return containsAny(q, "sales", "revenue") && strings.Contains(q, "categor")
		},
		Build: func(f Filters) string {
			return "SELECT category, ROUND(SUM(revenue), 2) as total_revenue, SUM(quantity_sold) as total_quantity FROM sales_data" +
				f.Where() + " GROUP BY category ORDER BY total_revenue DESC"
		},
	},
	{
		Name: "sales_by_country",
		Match: func(q string, _ Filters) bool {
			return containsAny(q, "sales", "revenue") && containsAny(q, "country", "countries")
		},
		Build: func(f Filters) string {
			return "SELECT country, ROUND(SUM(revenue), 2) as total_revenue, SUM(quantity_sold) as total_quantity FROM sales_data" +
				f.Where() + " GROUP BY country ORDER BY total_revenue DESC"
		},
	},
	{
		Name: "best_selling_products",
		Match: func(q string, _ Filters) bool {
			return containsAny(q, "best-selling", "best selling", "bestselling", "most sold", "top selling", "top-selling") &&
				strings.Contains(q, "product")
		},
		Build: func(f Filters) string {
			return "SELECT product_name, SUM(quantity_sold) as total_quantity, ROUND(SUM(revenue), 2) as total_revenue FROM sales_data" +
				f.Where() + " GROUP BY product_name ORDER BY SUM(quantity_sold) DESC LIMIT " + strconv.Itoa(f.Limit)
		},
	},
	{
		Name: "top_rated_products",
		Match: func(q string, _ Filters) bool {
			return containsAny(q, "top rated", "top-rated", "highest rated", "best rated", "best-rated")
		},
		Build: func(f Filters) string {
			return "SELECT product_name, ROUND(AVG(rating), 2) as avg_rating, COUNT(*) as review_count FROM sales_data" +
				f.Where() + " GROUP BY product_name ORDER BY avg_rating DESC LIMIT " + strconv.Itoa(f.Limit)
		},
	},
	{
		Name: "top_products",
		Match: func(q string, _ Filters) bool {
			return containsAny(q, "top", "best") && strings.Contains(q, "product")
		},
		Build: func(f Filters) string {
			return "SELECT product_name, ROUND(SUM(revenue), 2) as total_revenue, SUM(quantity_sold) as total_quantity FROM sales_data" +
				f.Where() + " GROUP BY product_name ORDER BY total_revenue DESC LIMIT " + strconv.Itoa(f.Limit)
		},
	},
	{
		Name: "average_rating",
		Match: func(q string, _ Filters) bool {
			return strings.Contains(q, "rating")
		},
		Build: func(f Filters) string {
			return "SELECT ROUND(AVG(rating), 2) as average_rating FROM sales_data" + f.Where()
		},
	},
	{
		Name: "monthly_trend",
		Match: func(q string, _ Filters) bool {
			return trendPattern.MatchString(q)
		},
		Build: func(f Filters) string {
			return "SELECT DATE_TRUNC('month', sale_date) as month, ROUND(SUM(revenue), 2) as total_revenue, SUM(quantity_sold) as total_quantity FROM sales_data" +
				f.Where() + " GROUP BY DATE_TRUNC('month', sale_date) ORDER BY month"
		},
	},
	{
		Name: "recent_sales",
		Match: func(q string, _ Filters) bool {
			return recentPattern.MatchString(q)
		},
		Build: func(f Filters) string {
			return "SELECT sale_date, product_name, category, country, revenue, quantity_sold FROM sales_data" +
				f.Where() + " ORDER BY sale_date DESC, id DESC LIMIT " + strconv.Itoa(f.Limit)
		},
	},
	{
		Name: "count",
		Match: func(q string, _ Filters) bool {
			return countPattern.MatchString(q)
		},
		Build: func(f Filters) string {
			return "SELECT COUNT(*) as total_count FROM sales_data" + f.Where()
		},
	},
	{
		Name: "average_revenue",
		Match: func(q string, _ Filters) bool {
			return containsAny(q, "average", "avg", "mean") && containsAny(q, "revenue", "sale", "order")
		},
		Build: func(f Filters) string {
			return "SELECT ROUND(AVG(revenue), 2) as average_revenue FROM sales_data" + f.Where()
		},
	},
	{
		Name: "total_sales",
		Match: func(q string, f Filters) bool {
			return containsAny(q, "total", "sales", "revenue", "sold") || !f.Empty()
		},
		Build: func(f Filters) string {
			return "SELECT ROUND(SUM(revenue), 2) as total_revenue, COUNT(*) as total_sales FROM sales_data" + f.Where()
		},
	},
}

// Heuristic translates questions with a fixed rule table. It needs no
// network and is always available.
type Heuristic struct {
	rules []Rule
}

func NewHeuristic(rules []Rule) *Heuristic {
	if rules == nil {
		rules = DefaultRules
	}
	return &Heuristic{rules: rules}
}

func (h *Heuristic) Translate(_ context.Context, question string) (Result, error) {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return Result{}, ErrNoMatch
	}
	filters := ExtractFilters(q)
	kind := DetectChartKind(q)
	for _, rule := range h.rules {
		if !rule.Match(q, filters) {
			continue
		}
		return Result{
			SQL:         rule.Build(filters),
			ChartKind:   kind,
			Explanation: fmt.Sprintf("Matched the %s pattern", strings.ReplaceAll(rule.Name, "_", " ")),
			Source:      SourceHeuristic,
			Rule:        rule.Name,
		}, nil
	}
	return Result{}, ErrNoMatch
}

func containsAny(q string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(q, needle) {
			return true
		}
	}
	return false
}

func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
