// Package render turns query rows into chat payloads. Output depends only on
// the inputs so the same rows always render to the same bytes.
package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	MaxRows = 10

	NullValue  = "N/A"
	dateLayout = "Jan 2, 2006"
)

type Kind string

const (
	KindScalar Kind = "scalar"
	KindRows   Kind = "rows"
)

type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Payload is a rendered reply. Scalar payloads carry Value and optional extra
// Fields; row payloads carry up to MaxRows Rows.
type Payload struct {
	Kind   Kind      `json:"kind"`
	Header string    `json:"header"`
	Value  string    `json:"value,omitempty"`
	Fields []Field   `json:"fields,omitempty"`
	Rows   [][]Field `json:"rows,omitempty"`
	Total  int       `json:"total"`
	Footer string    `json:"footer,omitempty"`
}

// Render builds the payload for rows answering question. A single row of
// only numeric values renders as a scalar with the first column as the
// headline figure.
func Render(columns []string, rows [][]any, question string) Payload {
	if isScalar(columns, rows) {
		return renderScalar(columns, rows[0])
	}

	payload := Payload{
		Kind:   KindRows,
		Header: rowsHeader(question),
		Total:  len(rows),
	}
	if len(rows) == 0 {
		payload.Footer = "No matching sales records found."
		return payload
	}
	shown := rows
	if len(shown) > MaxRows {
		shown = shown[:MaxRows]
		payload.Footer = fmt.Sprintf("Showing %d of %d results", MaxRows, len(rows))
	}
	payload.Rows = make([][]Field, 0, len(shown))
	for _, row := range shown {
		fields := make([]Field, 0, len(columns))
		for i, column := range columns {
			fields = append(fields, Field{Name: Title(column), Value: FormatValue(column, cellAt(row, i))})
		}
		payload.Rows = append(payload.Rows, fields)
	}
	return payload
}

func isScalar(columns []string, rows [][]any) bool {
	if len(rows) != 1 || len(columns) == 0 {
		return false
	}
	if len(columns) == 1 {
		return true
	}
	for i := range columns {
		if _, ok := toFloat(cellAt(rows[0], i)); !ok {
			return false
		}
	}
	return true
}

func renderScalar(columns []string, row []any) Payload {
	payload := Payload{
		Kind:   KindScalar,
		Header: scalarEmoji(columns[0]) + " " + Title(columns[0]),
		Value:  FormatValue(columns[0], cellAt(row, 0)),
		Total:  1,
	}
	for i := 1; i < len(columns); i++ {
		payload.Fields = append(payload.Fields, Field{Name: Title(columns[i]), Value: FormatValue(columns[i], cellAt(row, i))})
	}
	return payload
}

func scalarEmoji(column string) string {
	key := strings.ToLower(column)
	switch {
	case containsAny(key, "revenue", "sales"):
		return "💰"
	case strings.Contains(key, "rating"):
		return "⭐"
	case isCountKey(key):
		return "🔢"
	default:
		return "📊"
	}
}

// isCountKey matches count columns but not country ones.
func isCountKey(key string) bool {
	return strings.Contains(strings.ReplaceAll(key, "country", ""), "count")
}

func rowsHeader(question string) string {
	q := strings.ToLower(question)
	switch {
	case containsAny(q, "recent", "latest", "last"):
		return "🕒 Recent Sales"
	case strings.Contains(q, "rating") || strings.Contains(q, "rated"):
		return "⭐ Product Ratings"
	case strings.Contains(q, "product"):
		return "🏆 Top Products"
	case strings.Contains(q, "categor"):
		return "📂 Sales by Category"
	case containsAny(q, "country", "countries"):
		return "🌍 Sales by Country"
	default:
		return "📊 Query Results"
	}
}

// Title turns a column name into a label: underscores become spaces and
// words are title-cased.
func Title(column string) string {
	// Casers carry state and are not safe to share across goroutines.
	return cases.Title(language.English).String(strings.ReplaceAll(column, "_", " "))
}

// FormatValue formats value according to the column name.
func FormatValue(column string, value any) string {
	if value == nil {
		return NullValue
	}
	key := strings.ToLower(column)

	switch {
	case containsAny(key, "revenue", "price", "amount"):
		if v, ok := toFloat(value); ok {
			return FormatCurrency(v)
		}
	case strings.Contains(key, "rating"):
		if v, ok := toFloat(value); ok {
			return FormatRating(v)
		}
	case isCountKey(key) || containsAny(key, "quantity", "sold", "units"):
		if v, ok := toFloat(value); ok {
			unit := "items"
			if containsAny(key, "quantity", "sold", "units") {
				unit = "units"
			}
			return humanize.Comma(int64(math.Round(v))) + " " + unit
		}
	case containsAny(key, "date", "month"):
		if formatted, ok := formatDate(value); ok {
			return formatted
		}
	}
	return formatOther(value)
}

func FormatCurrency(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return sign + "$" + humanize.FormatFloat("#,###.##", v)
}

// FormatRating renders round(v) stars clamped to 0..5 and the value to two
// decimals.
func FormatRating(v float64) string {
	stars := int(math.Round(v))
	stars = max(0, min(5, stars))
	return strings.Repeat("⭐", stars) + " (" + strconv.FormatFloat(v, 'f', 2, 64) + ")"
}

func formatDate(value any) (string, bool) {
	switch typed := value.(type) {
	case time.Time:
		return typed.UTC().Format(dateLayout), true
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, typed); err == nil {
				return parsed.UTC().Format(dateLayout), true
			}
		}
	}
	return "", false
}

func formatOther(value any) string {
	switch typed := value.(type) {
	case int:
		return formatNumber(float64(typed))
	case int32:
		return formatNumber(float64(typed))
	case int64:
		return formatNumber(float64(typed))
	case float32:
		return formatNumber(float64(typed))
	case float64:
		return formatNumber(typed)
	case time.Time:
		return typed.UTC().Format(dateLayout)
	case string:
		return typed
	case []byte:
		return string(typed)
	default:
		return fmt.Sprint(typed)
	}
}

func formatNumber(v float64) string {
	if math.Abs(v) > 1000 {
		return humanize.FormatFloat("#,###.##", v)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

func cellAt(row []any, idx int) any {
	if idx < len(row) {
		return row[idx]
	}
	return nil
}

func containsAny(value string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(value, needle) {
			return true
		}
	}
	return false
}
