package seed

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/salesbot/salesbot/internal/schema"
	"github.com/salesbot/salesbot/internal/storage"
)

// snapshotRow is the parquet layout the duckdb store reads. sale_date is an
// ISO date string and is cast back to DATE by the store's view.
type snapshotRow struct {
	ID           int64   `parquet:"id"`
	SaleDate     string  `parquet:"sale_date"`
	ProductName  string  `parquet:"product_name"`
	Category     string  `parquet:"category"`
	Country      string  `parquet:"country"`
	Revenue      float64 `parquet:"revenue"`
	Rating       float64 `parquet:"rating"`
	QuantitySold int32   `parquet:"quantity_sold"`
}

func EncodeParquet(records []schema.SalesRecord) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("records are required")
	}
	rows := make([]snapshotRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, snapshotRow{
			ID:           record.ID,
			SaleDate:     record.SaleDate.UTC().Format("2006-01-02"),
			ProductName:  record.ProductName,
			Category:     record.Category,
			Country:      record.Country,
			Revenue:      record.Revenue,
			Rating:       record.Rating,
			QuantitySold: int32(record.QuantitySold),
		})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[snapshotRow](buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// ParquetSink uploads each batch as one part of a snapshot. All parts share
// the generation timestamp taken when the sink is created.
type ParquetSink struct {
	store       storage.ObjectStore
	dataset     string
	generatedAt time.Time
	part        int
	keys        []string
}

func NewParquetSink(store storage.ObjectStore, dataset string, generatedAt time.Time) (*ParquetSink, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if dataset == "" {
		dataset = schema.Table
	}
	return &ParquetSink{store: store, dataset: dataset, generatedAt: generatedAt}, nil
}

func (s *ParquetSink) Write(ctx context.Context, records []schema.SalesRecord) error {
	if len(records) == 0 {
		return nil
	}
	data, err := EncodeParquet(records)
	if err != nil {
		return err
	}
	key, err := storage.BuildSnapshotPath(s.dataset, s.generatedAt, s.part)
	if err != nil {
		return fmt.Errorf("build snapshot path: %w", err)
	}
	if _, err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: storage.ParquetContentType}); err != nil {
		return fmt.Errorf("put snapshot part %d: %w", s.part, err)
	}
	s.part++
	s.keys = append(s.keys, key)
	return nil
}

// Keys lists the uploaded objects, suitable for SALESBOT_DATASET_OBJECT_KEYS.
func (s *ParquetSink) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}
