package seed

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/salesbot/salesbot/internal/schema"
)

var insertColumns = []string{"sale_date", "product_name", "category", "country", "revenue", "rating", "quantity_sold"}

// PostgresSink inserts records into sales_data. The generated ids are left to
// the SERIAL column.
type PostgresSink struct {
	db       *sql.DB
	truncate bool
	cleared  bool
}

func NewPostgresSink(db *sql.DB, truncate bool) (*PostgresSink, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	return &PostgresSink{db: db, truncate: truncate}, nil
}

func (s *PostgresSink) Write(ctx context.Context, records []schema.SalesRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if s.truncate && !s.cleared {
		if _, err := tx.ExecContext(ctx, `TRUNCATE TABLE `+schema.Table+` RESTART IDENTITY`); err != nil {
			return fmt.Errorf("truncate %s: %w", schema.Table, err)
		}
	}

	statement, args := insertStatement(records)
	if _, err := tx.ExecContext(ctx, statement, args...); err != nil {
		return fmt.Errorf("insert %d records: %w", len(records), err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.cleared = true
	return nil
}

func insertStatement(records []schema.SalesRecord) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", schema.Table, strings.Join(insertColumns, ", "))

	args := make([]any, 0, len(records)*len(insertColumns))
	for i, record := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range insertColumns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i*len(insertColumns)+j+1)
		}
		b.WriteString(")")
		args = append(args,
			record.SaleDate.Format("2006-01-02"),
			record.ProductName,
			record.Category,
			record.Country,
			record.Revenue,
			record.Rating,
			record.QuantitySold,
		)
	}
	return b.String(), args
}
