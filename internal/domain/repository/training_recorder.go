package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"gaze_service/internal/domain/model"

	"github.com/jmoiron/sqlx"
)

type TrainingDataRecorder interface {
	SaveTrainingData(ctx context.Context, rows []model.TrainingRow) error
}

// SQLTrainingRecorder mirrors labelled sessions into the training_data table.
type SQLTrainingRecorder struct {
	db *sqlx.DB
}

func NewSQLTrainingRecorder(store *Store) *SQLTrainingRecorder {
	return &SQLTrainingRecorder{db: store.DB}
}

func (r *SQLTrainingRecorder) SaveTrainingData(ctx context.Context, rows []model.TrainingRow) error {
	if len(rows) == 0 {
		return nil
	}
	const query = `
		INSERT INTO training_data (
			num_gaze_points, avg_gaze_x, avg_gaze_y,
			gaze_std_x, gaze_std_y,
			center_focus_ratio, perimeter_focus_ratio, unique_area_coverage,
			total_view_time, years_of_experience, title, label
		) VALUES (
			:num_gaze_points, :avg_gaze_x, :avg_gaze_y,
			:gaze_std_x, :gaze_std_y,
			:center_focus_ratio, :perimeter_focus_ratio, :unique_area_coverage,
			:total_view_time, :years_of_experience, :title, :label
		)`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin training insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare training insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("failed to insert training row: %w", err)
		}
	}
	return tx.Commit()
}

// CountTrainingData returns the number of rows in training_data.
func (r *SQLTrainingRecorder) CountTrainingData(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM training_data`); err != nil {
		return 0, fmt.Errorf("failed to count training rows: %w", err)
	}
	return n, nil
}

// CSVTrainingRecorder writes the training artifact: one header line with the
// feature columns followed by "label", then one line per session.
type CSVTrainingRecorder struct {
	path string
}

func NewCSVTrainingRecorder(path string) *CSVTrainingRecorder {
	return &CSVTrainingRecorder{path: path}
}

func (r *CSVTrainingRecorder) SaveTrainingData(_ context.Context, rows []model.TrainingRow) error {
	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	f, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("failed to create training file: %w", err)
	}
	if err := WriteTrainingCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteTrainingCSV encodes rows in the training artifact layout.
func WriteTrainingCSV(w io.Writer, rows []model.TrainingRow) error {
	cw := csv.NewWriter(w)
	header := append(append([]string{}, model.FeatureColumns...), "label")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, row := range rows {
		record := make([]string, 0, len(header))
		for _, col := range model.FeatureColumns {
			if v, ok := row.Numeric(col); ok {
				record = append(record, formatFeature(col, v))
				continue
			}
			record = append(record, string(row.Title))
		}
		record = append(record, strconv.Itoa(int(row.Label)))
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

func formatFeature(col string, v float64) string {
	switch col {
	case "num_gaze_points", "years_of_experience":
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
