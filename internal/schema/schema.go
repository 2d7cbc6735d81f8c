// Package schema describes the sales_data table the bot answers questions
// about. Category and country values are case-sensitive and stored exactly as
// listed here.
package schema

import (
	"fmt"
	"strings"
	"time"
)

const Table = "sales_data"

type Column struct {
	Name        string
	Type        string
	Description string
}

var Columns = []Column{
	{Name: "id", Type: "SERIAL PRIMARY KEY", Description: "unique sale identifier"},
	{Name: "sale_date", Type: "DATE", Description: "date of the sale"},
	{Name: "product_name", Type: "VARCHAR(255)", Description: "name of the product sold"},
	{Name: "category", Type: "VARCHAR(100)", Description: "product category"},
	{Name: "country", Type: "VARCHAR(100)", Description: "country where the sale happened"},
	{Name: "revenue", Type: "DECIMAL(10,2)", Description: "sale revenue in USD"},
	{Name: "rating", Type: "DECIMAL(3,2)", Description: "customer rating from 0 to 5"},
	{Name: "quantity_sold", Type: "INTEGER", Description: "number of units sold"},
}

var Categories = []string{
	"Electronics",
	"Clothing",
	"Home & Kitchen",
	"Books",
	"Sports & Outdoors",
	"Beauty & Personal Care",
	"Toys & Games",
	"Automotive",
	"Health & Household",
	"Grocery",
	"Office Products",
	"Pet Supplies",
	"Jewelry",
	"Garden & Outdoor",
	"Musical Instruments",
}

var Countries = []string{
	"USA",
	"UK",
	"Canada",
	"Germany",
	"France",
	"Japan",
	"Australia",
	"India",
	"Brazil",
	"Mexico",
	"Spain",
	"Italy",
	"China",
	"South Korea",
	"Netherlands",
}

// SalesRecord is one row of sales_data.
type SalesRecord struct {
	ID           int64     `json:"id"`
	SaleDate     time.Time `json:"sale_date"`
	ProductName  string    `json:"product_name"`
	Category     string    `json:"category"`
	Country      string    `json:"country"`
	Revenue      float64   `json:"revenue"`
	Rating       float64   `json:"rating"`
	QuantitySold int       `json:"quantity_sold"`
}

func HasColumn(name string) bool {
	name = strings.ToLower(name)
	for _, col := range Columns {
		if col.Name == name {
			return true
		}
	}
	return false
}

func IsCategory(value string) bool {
	return contains(Categories, value)
}

func IsCountry(value string) bool {
	return contains(Countries, value)
}

func contains(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}

// Describe renders the table for inclusion in a model prompt.
func Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table: %s\nColumns:\n", Table)
	for _, col := range Columns {
		fmt.Fprintf(&b, "- %s (%s): %s\n", col.Name, col.Type, col.Description)
	}
	fmt.Fprintf(&b, "\nValid category values (case-sensitive, exact spelling): %s\n", quoteAll(Categories))
	fmt.Fprintf(&b, "Valid country values (case-sensitive, exact spelling): %s\n", quoteAll(Countries))
	return b.String()
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, value := range values {
		quoted[i] = "'" + value + "'"
	}
	return strings.Join(quoted, ", ")
}
