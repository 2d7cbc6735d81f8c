package nl2sql

import (
	"fmt"
	"strings"

	"github.com/salesbot/salesbot/internal/schema"
)

type queryPattern struct {
	Name     string
	When     string
	Template string
}

var queryPatterns = []queryPattern{
	{
		Name:     "Total revenue",
		When:     "overall totals, \"total sales\", \"how much did we make\"",
		Template: "SELECT ROUND(SUM(revenue), 2) as total_revenue, COUNT(*) as total_sales FROM sales_data",
	},
	{
		Name:     "Breakdown by category",
		When:     "sales or revenue per category",
		Template: "SELECT category, ROUND(SUM(revenue), 2) as total_revenue FROM sales_data GROUP BY category ORDER BY total_revenue DESC",
	},
	{
		Name:     "Breakdown by country",
		When:     "sales or revenue per country",
		Template: "SELECT country, ROUND(SUM(revenue), 2) as total_revenue FROM sales_data GROUP BY country ORDER BY total_revenue DESC",
	},
	{
		Name:     "Best-selling products",
		When:     "best-selling, most sold, top selling (by units)",
		Template: "SELECT product_name, SUM(quantity_sold) as total_quantity FROM sales_data GROUP BY product_name ORDER BY SUM(quantity_sold) DESC LIMIT 10",
	},
	{
		Name:     "Top products by revenue",
		When:     "top or best products without a units qualifier",
		Template: "SELECT product_name, ROUND(SUM(revenue), 2) as total_revenue FROM sales_data GROUP BY product_name ORDER BY total_revenue DESC LIMIT 10",
	},
	{
		Name:     "Ratings",
		When:     "top rated, highest rated, average rating",
		Template: "SELECT product_name, ROUND(AVG(rating), 2) as avg_rating FROM sales_data GROUP BY product_name ORDER BY avg_rating DESC LIMIT 10",
	},
	{
		Name:     "Monthly trend",
		When:     "trend, monthly, over time",
		Template: "SELECT DATE_TRUNC('month', sale_date) as month, ROUND(SUM(revenue), 2) as total_revenue FROM sales_data GROUP BY DATE_TRUNC('month', sale_date) ORDER BY month",
	},
	{
		Name:     "Recent sales",
		When:     "recent, latest, last sales",
		Template: "SELECT sale_date, product_name, category, country, revenue FROM sales_data ORDER BY sale_date DESC LIMIT 10",
	},
}

const systemPrompt = `You translate questions about retail sales into a single read-only SQL query.
Respond with exactly one JSON object and nothing else:
{"sql": "<query>", "chartType": "bar" | "pie" | "line" | null, "explanation": "<one sentence>"}

Rules:
- Query only the sales_data table. Use only the listed columns.
- Produce one SELECT statement. No comments, no semicolons, no data changes.
- Category and country values are case-sensitive. Use the exact spelling from the valid value lists.
- MANDATORY FILTERS: if the question names a category, the query MUST contain WHERE category = '<Exact Category>'.
  If the question names a country, the query MUST contain country = '<Exact Country>'. Combine both with AND.
- Round money to 2 decimals with ROUND(..., 2). Use LIMIT 10 unless the question asks for another number.
- Set chartType only when the user asks for a chart, graph or visualization: "pie" for shares, "line" for trends, otherwise "bar".`

const workedExamples = `Worked examples:
Question: top 5 best-selling products in electronics
Correct: SELECT product_name, SUM(quantity_sold) as total_quantity FROM sales_data WHERE category = 'Electronics' GROUP BY product_name ORDER BY SUM(quantity_sold) DESC LIMIT 5
Incorrect (missing the category filter): SELECT product_name, SUM(quantity_sold) FROM sales_data GROUP BY product_name ORDER BY 2 DESC LIMIT 5

Question: revenue in south korea for home and kitchen
Correct: SELECT ROUND(SUM(revenue), 2) as total_revenue FROM sales_data WHERE category = 'Home & Kitchen' AND country = 'South Korea'
Incorrect (wrong casing): SELECT SUM(revenue) FROM sales_data WHERE category = 'home and kitchen' AND country = 'south korea'`

func buildPrompt(question string, examples []HistoryEntry) (string, string) {
	var b strings.Builder
	b.WriteString(schema.Describe())

	b.WriteString("\nQuery patterns:\n")
	for _, pattern := range queryPatterns {
		fmt.Fprintf(&b, "- %s (%s): %s\n", pattern.Name, pattern.When, pattern.Template)
	}

	b.WriteString("\n")
	b.WriteString(workedExamples)
	b.WriteString("\n")

	if len(examples) > 0 {
		b.WriteString("\nRecent successful translations:\n")
		for _, entry := range examples {
			fmt.Fprintf(&b, "Q: %s\nSQL: %s\n", entry.Question, entry.SQL)
		}
	}

	fmt.Fprintf(&b, "\nQuestion: %s\n", strings.TrimSpace(question))
	return systemPrompt, b.String()
}
