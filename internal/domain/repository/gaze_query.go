package repository

import (
	"fmt"

	"gaze_service/internal/domain/model"
)

// gazeAggregateQuery renders the staged aggregation over gaze_data for one
// (user_id, survey_id). Each CTE restates one step of the in-memory
// aggregator:
//
//	normalized_gaze   pixel -> [0,1) using the recorded image size
//	with_center_flag  centre indicator and grid cell per row
//	valid_points      rows with both coordinates normalized
//	question_times    per-question timestamp span
//	total_view_time   sum of spans per key
//	aggregated        count, means, focus ratios
//	dispersion        population variance around the per-key mean
//	coverage          distinct grid cells
//
// Rows without image dimensions still contribute to the view time.
func gazeAggregateQuery(d Dialect) string {
	return fmt.Sprintf(`
		WITH normalized_gaze AS (
			SELECT
				user_id,
				survey_id,
				question_id,
				timestamp,
				CAST(gaze_x AS DOUBLE PRECISION) / NULLIF(image_width, 0) AS norm_x,
				CAST(gaze_y AS DOUBLE PRECISION) / NULLIF(image_height, 0) AS norm_y
			FROM gaze_data
			WHERE user_id = ? AND survey_id = ?
		),
		with_center_flag AS (
			SELECT
				*,
				CASE
					WHEN norm_x BETWEEN %[1]g AND %[2]g AND norm_y BETWEEN %[1]g AND %[2]g THEN 1
					ELSE 0
				END AS in_center,
				%[3]s AS grid_x,
				%[4]s AS grid_y
			FROM normalized_gaze
		),
		valid_points AS (
			SELECT * FROM with_center_flag
			WHERE norm_x IS NOT NULL AND norm_y IS NOT NULL
		),
		question_times AS (
			SELECT
				user_id,
				survey_id,
				question_id,
				MAX(timestamp) - MIN(timestamp) AS view_time_per_question
			FROM with_center_flag
			GROUP BY user_id, survey_id, question_id
		),
		total_view_time AS (
			SELECT
				user_id,
				survey_id,
				SUM(view_time_per_question) AS total_view_time
			FROM question_times
			GROUP BY user_id, survey_id
		),
		aggregated AS (
			SELECT
				user_id,
				survey_id,
				COUNT(*) AS num_gaze_points,
				AVG(norm_x) AS avg_gaze_x,
				AVG(norm_y) AS avg_gaze_y,
				CAST(SUM(in_center) AS DOUBLE PRECISION) / COUNT(*) AS center_focus_ratio,
				1 - (CAST(SUM(in_center) AS DOUBLE PRECISION) / COUNT(*)) AS perimeter_focus_ratio
			FROM valid_points
			GROUP BY user_id, survey_id
		),
		dispersion AS (
			SELECT
				v.user_id,
				v.survey_id,
				AVG((v.norm_x - a.avg_gaze_x) * (v.norm_x - a.avg_gaze_x)) AS var_gaze_x,
				AVG((v.norm_y - a.avg_gaze_y) * (v.norm_y - a.avg_gaze_y)) AS var_gaze_y
			FROM valid_points v
			JOIN aggregated a ON v.user_id = a.user_id AND v.survey_id = a.survey_id
			GROUP BY v.user_id, v.survey_id
		),
		cells AS (
			SELECT DISTINCT user_id, survey_id, grid_x, grid_y
			FROM valid_points
		),
		coverage AS (
			SELECT user_id, survey_id, COUNT(*) AS unique_cells
			FROM cells
			GROUP BY user_id, survey_id
		)
		SELECT
			t.user_id,
			t.survey_id,
			COALESCE(a.num_gaze_points, 0) AS num_gaze_points,
			a.avg_gaze_x,
			a.avg_gaze_y,
			d.var_gaze_x,
			d.var_gaze_y,
			a.center_focus_ratio,
			a.perimeter_focus_ratio,
			COALESCE(c.unique_cells, 0) AS unique_cells,
			t.total_view_time
		FROM total_view_time t
		LEFT JOIN aggregated a ON a.user_id = t.user_id AND a.survey_id = t.survey_id
		LEFT JOIN dispersion d ON d.user_id = t.user_id AND d.survey_id = t.survey_id
		LEFT JOIN coverage c ON c.user_id = t.user_id AND c.survey_id = t.survey_id`,
		model.CenterLow,
		model.CenterHigh,
		d.floorInt(fmt.Sprintf("norm_x * %d", model.GridSize)),
		d.floorInt(fmt.Sprintf("norm_y * %d", model.GridSize)),
	)
}
