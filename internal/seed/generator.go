package seed

import (
	"math"
	"math/rand"
	"time"

	"github.com/salesbot/salesbot/internal/schema"
)

type product struct {
	name     string
	minPrice float64
	maxPrice float64
}

var productsByCategory = map[string][]product{
	"Electronics":            {{"Laptop Pro", 899, 1999}, {"Wireless Headphones", 59, 349}, {"Smartphone X", 499, 1299}, {"4K Monitor", 249, 799}},
	"Clothing":               {{"Denim Jacket", 39, 129}, {"Running Shoes", 49, 179}, {"Wool Sweater", 29, 99}},
	"Home & Kitchen":         {{"Espresso Machine", 149, 699}, {"Chef Knife Set", 49, 249}, {"Air Fryer", 69, 199}},
	"Books":                  {{"Mystery Novel", 8, 24}, {"Cookbook", 15, 45}, {"Programming Guide", 29, 69}},
	"Sports & Outdoors":      {{"Yoga Mat", 15, 79}, {"Camping Tent", 89, 449}, {"Mountain Bike", 399, 1499}},
	"Beauty & Personal Care": {{"Face Serum", 12, 89}, {"Electric Toothbrush", 29, 199}},
	"Toys & Games":           {{"Board Game", 19, 69}, {"Building Blocks Set", 24, 159}},
	"Automotive":             {{"Dash Cam", 49, 249}, {"Car Vacuum", 29, 99}},
	"Health & Household":     {{"Vitamin Pack", 9, 49}, {"Air Purifier", 89, 399}},
	"Grocery":                {{"Organic Coffee Beans", 9, 29}, {"Green Tea", 4, 19}},
	"Office Products":        {{"Ergonomic Chair", 149, 599}, {"Standing Desk", 249, 899}},
	"Pet Supplies":           {{"Dog Bed", 29, 149}, {"Cat Tree", 49, 199}},
	"Jewelry":                {{"Silver Necklace", 39, 299}, {"Gold Ring", 149, 999}},
	"Garden & Outdoor":       {{"Garden Hose", 19, 79}, {"Patio Set", 299, 1299}},
	"Musical Instruments":    {{"Acoustic Guitar", 129, 899}, {"Digital Piano", 399, 1599}},
}

// Generator produces plausible sales_data rows from a seeded source, so the
// same seed always yields the same dataset.
type Generator struct {
	rnd      *rand.Rand
	start    time.Time
	days     int
	sequence int64
}

func NewGenerator(seed int64, start time.Time, days int) *Generator {
	if days <= 0 {
		days = 1
	}
	return &Generator{
		rnd:   rand.New(rand.NewSource(seed)),
		start: truncateToDay(start),
		days:  days,
	}
}

func (g *Generator) NextRecord() schema.SalesRecord {
	g.sequence++
	category := pickOne(g.rnd, schema.Categories)
	item := pickOne(g.rnd, productsByCategory[category])
	quantity := g.pickQuantity()
	unitPrice := item.minPrice + g.rnd.Float64()*(item.maxPrice-item.minPrice)

	return schema.SalesRecord{
		ID:           g.sequence,
		SaleDate:     g.start.AddDate(0, 0, g.rnd.Intn(g.days)),
		ProductName:  item.name,
		Category:     category,
		Country:      pickOne(g.rnd, schema.Countries),
		Revenue:      round2(unitPrice * float64(quantity)),
		Rating:       g.pickRating(),
		QuantitySold: quantity,
	}
}

// Batch returns the next n records.
func (g *Generator) Batch(n int) []schema.SalesRecord {
	records := make([]schema.SalesRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, g.NextRecord())
	}
	return records
}

func (g *Generator) pickQuantity() int {
	p := g.rnd.Intn(100)
	switch {
	case p < 60:
		return 1
	case p < 85:
		return 2 + g.rnd.Intn(3)
	default:
		return 5 + g.rnd.Intn(16)
	}
}

// pickRating skews towards favourable reviews, like most storefronts.
func (g *Generator) pickRating() float64 {
	p := g.rnd.Intn(100)
	switch {
	case p < 10:
		return round2(1 + g.rnd.Float64()*2)
	case p < 35:
		return round2(3 + g.rnd.Float64())
	default:
		return round2(4 + g.rnd.Float64())
	}
}

func truncateToDay(ts time.Time) time.Time {
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne[T any](r *rand.Rand, values []T) T {
	return values[r.Intn(len(values))]
}
