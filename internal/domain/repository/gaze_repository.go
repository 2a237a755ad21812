package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gaze_service/internal/domain/model"

	"github.com/jmoiron/sqlx"
)

// GazeAggregate is the per-session row produced by the aggregation query.
type GazeAggregate struct {
	Key                 model.SessionKey
	NumGazePoints       int
	AvgGazeX            float64
	AvgGazeY            float64
	GazeStdX            float64
	GazeStdY            float64
	CenterFocusRatio    float64
	PerimeterFocusRatio float64
	UniqueAreaCoverage  float64
	TotalViewTime       float64
}

// DemographicAnswers is the pivoted survey answers of one session.
type DemographicAnswers struct {
	UserID            int64          `db:"user_id"`
	SurveyID          int64          `db:"survey_id"`
	YearsOfExperience sql.NullString `db:"years_of_experience"`
	Title             sql.NullString `db:"title"`
}

func (d DemographicAnswers) Key() model.SessionKey {
	return model.SessionKey{UserID: d.UserID, SurveyID: d.SurveyID}
}

// Demographics parses the free-text answers.
func (d DemographicAnswers) Demographics() (model.Demographics, error) {
	if !d.YearsOfExperience.Valid {
		return model.Demographics{}, fmt.Errorf("missing %s answer", TraitYearsOfExperience)
	}
	if !d.Title.Valid {
		return model.Demographics{}, fmt.Errorf("missing %s answer", TraitTitle)
	}
	years, err := strconv.ParseFloat(strings.TrimSpace(d.YearsOfExperience.String), 64)
	if err != nil || years < 0 || years > math.MaxInt32 || math.IsNaN(years) {
		return model.Demographics{}, fmt.Errorf("invalid %s answer %q", TraitYearsOfExperience, d.YearsOfExperience.String)
	}
	return model.Demographics{
		YearsOfExperience: int(years),
		Title:             model.ParseTitle(d.Title.String),
	}, nil
}

type gazeAggregateRow struct {
	UserID              int64           `db:"user_id"`
	SurveyID            int64           `db:"survey_id"`
	NumGazePoints       int64           `db:"num_gaze_points"`
	AvgGazeX            sql.NullFloat64 `db:"avg_gaze_x"`
	AvgGazeY            sql.NullFloat64 `db:"avg_gaze_y"`
	VarGazeX            sql.NullFloat64 `db:"var_gaze_x"`
	VarGazeY            sql.NullFloat64 `db:"var_gaze_y"`
	CenterFocusRatio    sql.NullFloat64 `db:"center_focus_ratio"`
	PerimeterFocusRatio sql.NullFloat64 `db:"perimeter_focus_ratio"`
	UniqueCells         int64           `db:"unique_cells"`
	TotalViewTime       sql.NullFloat64 `db:"total_view_time"`
}

func (r gazeAggregateRow) aggregate() GazeAggregate {
	agg := GazeAggregate{
		Key:                 model.SessionKey{UserID: r.UserID, SurveyID: r.SurveyID},
		NumGazePoints:       int(r.NumGazePoints),
		AvgGazeX:            r.AvgGazeX.Float64,
		AvgGazeY:            r.AvgGazeY.Float64,
		CenterFocusRatio:    r.CenterFocusRatio.Float64,
		PerimeterFocusRatio: 1,
		UniqueAreaCoverage:  model.Coverage(int(r.UniqueCells)),
		TotalViewTime:       r.TotalViewTime.Float64,
	}
	if r.PerimeterFocusRatio.Valid {
		agg.PerimeterFocusRatio = r.PerimeterFocusRatio.Float64
	}
	if agg.NumGazePoints > 1 {
		agg.GazeStdX = populationStd(r.VarGazeX)
		agg.GazeStdY = populationStd(r.VarGazeY)
	}
	return agg
}

func populationStd(v sql.NullFloat64) float64 {
	if !v.Valid || v.Float64 <= 0 {
		return 0
	}
	return math.Sqrt(v.Float64)
}

// GazeRepository runs the relational realization of the feature aggregation.
type GazeRepository struct {
	db      *sqlx.DB
	dialect Dialect
	traits  TraitExtractor
}

func NewGazeRepository(store *Store, traits TraitExtractor) *GazeRepository {
	return &GazeRepository{
		db:      store.DB,
		dialect: store.Dialect,
		traits:  traits,
	}
}

// GazeAggregates returns the aggregate rows for the key: one row when the
// store has gaze data for it, none otherwise.
func (r *GazeRepository) GazeAggregates(ctx context.Context, key model.SessionKey) ([]GazeAggregate, error) {
	query := r.db.Rebind(gazeAggregateQuery(r.dialect))

	var rows []gazeAggregateRow
	if err := r.db.SelectContext(ctx, &rows, query, key.UserID, key.SurveyID); err != nil {
		return nil, fmt.Errorf("failed to query gaze aggregate: %w", err)
	}

	out := make([]GazeAggregate, len(rows))
	for i, row := range rows {
		out[i] = row.aggregate()
	}
	return out, nil
}

// Demographics returns the pivoted trait answers for the key.
func (r *GazeRepository) Demographics(ctx context.Context, key model.SessionKey) ([]DemographicAnswers, error) {
	query, args := r.traits.pivotQuery(key.UserID, key.SurveyID)

	var rows []DemographicAnswers
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query demographics: %w", err)
	}
	return rows, nil
}

// FeatureVector runs both queries and merges them.
func (r *GazeRepository) FeatureVector(ctx context.Context, key model.SessionKey) (model.FeatureVector, error) {
	aggs, err := r.GazeAggregates(ctx, key)
	if err != nil {
		return model.FeatureVector{}, err
	}
	if len(aggs) == 0 {
		return model.FeatureVector{}, &model.NoDataError{Key: key}
	}
	demos, err := r.Demographics(ctx, key)
	if err != nil {
		return model.FeatureVector{}, err
	}
	return MergeFeatures(key, aggs, demos)
}

// MergeFeatures joins gaze aggregates with demographic answers on
// (user_id, survey_id) and returns the feature vector for key.
func MergeFeatures(key model.SessionKey, aggs []GazeAggregate, demos []DemographicAnswers) (model.FeatureVector, error) {
	for _, agg := range aggs {
		if agg.Key != key {
			continue
		}
		for _, demo := range demos {
			if demo.Key() != key {
				continue
			}
			d, err := demo.Demographics()
			if err != nil {
				return model.FeatureVector{}, &model.NoFeaturesError{Key: key, Reason: "incomplete demographics", Err: err}
			}
			return model.FeatureVector{
				NumGazePoints:       agg.NumGazePoints,
				AvgGazeX:            agg.AvgGazeX,
				AvgGazeY:            agg.AvgGazeY,
				GazeStdX:            agg.GazeStdX,
				GazeStdY:            agg.GazeStdY,
				CenterFocusRatio:    agg.CenterFocusRatio,
				PerimeterFocusRatio: agg.PerimeterFocusRatio,
				UniqueAreaCoverage:  agg.UniqueAreaCoverage,
				TotalViewTime:       agg.TotalViewTime,
				YearsOfExperience:   d.YearsOfExperience,
				Title:               d.Title,
			}, nil
		}
	}
	return model.FeatureVector{}, &model.NoFeaturesError{Key: key, Reason: "no demographic answers to merge"}
}

// InsertSamples stores raw gaze samples.
func (r *GazeRepository) InsertSamples(ctx context.Context, samples []model.GazeSample) error {
	if len(samples) == 0 {
		return nil
	}
	const query = `
		INSERT INTO gaze_data (
			user_id, survey_id, question_id, timestamp,
			gaze_x, gaze_y, image_width, image_height
		) VALUES (
			:user_id, :survey_id, :question_id, :timestamp,
			:gaze_x, :gaze_y, :image_width, :image_height
		)`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin gaze insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare gaze insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		if _, err := stmt.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("failed to insert gaze sample: %w", err)
		}
	}
	return tx.Commit()
}

// SaveQuestion inserts a survey question if its id is not yet present.
func (r *GazeRepository) SaveQuestion(ctx context.Context, id int64, text string) error {
	query := r.db.Rebind(`
		INSERT INTO questions (id, question_text)
		SELECT CAST(? AS BIGINT), CAST(? AS TEXT)
		WHERE NOT EXISTS (SELECT 1 FROM questions WHERE id = ?)`)
	if _, err := r.db.ExecContext(ctx, query, id, text, id); err != nil {
		return fmt.Errorf("failed to save question %d: %w", id, err)
	}
	return nil
}

// DeleteSession removes the gaze samples and answers stored for key.
func (r *GazeRepository) DeleteSession(ctx context.Context, key model.SessionKey) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin session delete: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"gaze_data", "responses"} {
		query := tx.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE user_id = ? AND survey_id = ?`, table))
		if _, err := tx.ExecContext(ctx, query, key.UserID, key.SurveyID); err != nil {
			return fmt.Errorf("failed to delete %s for %s: %w", table, key, err)
		}
	}
	return tx.Commit()
}

// SaveResponse stores one free-text answer.
func (r *GazeRepository) SaveResponse(ctx context.Context, key model.SessionKey, questionID int64, text string) error {
	query := r.db.Rebind(`
		INSERT INTO responses (user_id, survey_id, question_id, response_text)
		VALUES (?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, key.UserID, key.SurveyID, questionID, text); err != nil {
		return fmt.Errorf("failed to save response: %w", err)
	}
	return nil
}
