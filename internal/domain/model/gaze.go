package model

// GazePoint is one sample in pixel space.
type GazePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NormalizedPoint is a gaze point divided by the image dimensions.
type NormalizedPoint struct {
	X float64
	Y float64
}

// Normalize divides pixel coordinates by the image size.
func Normalize(points []GazePoint, width, height float64) []NormalizedPoint {
	out := make([]NormalizedPoint, len(points))
	for i, p := range points {
		out[i] = NormalizedPoint{X: p.X / width, Y: p.Y / height}
	}
	return out
}

// GazeSample is a raw eye-tracker event as stored in gaze_data.
type GazeSample struct {
	UserID      int64    `json:"user_id" db:"user_id" binding:"required"`
	SurveyID    int64    `json:"survey_id" db:"survey_id" binding:"required"`
	QuestionID  int64    `json:"question_id" db:"question_id" binding:"required"`
	Timestamp   float64  `json:"timestamp" db:"timestamp"`
	GazeX       float64  `json:"gaze_x" db:"gaze_x"`
	GazeY       float64  `json:"gaze_y" db:"gaze_y"`
	ImageWidth  *float64 `json:"image_width" db:"image_width"`
	ImageHeight *float64 `json:"image_height" db:"image_height"`
}

// Session is the ordered gaze samples of one (user, survey) pair.
type Session struct {
	Key     SessionKey
	Samples []GazeSample
}

// TotalViewTime sums, per question, the span between the first and last sample.
func (s Session) TotalViewTime() float64 {
	type span struct{ min, max float64 }
	spans := make(map[int64]*span)
	order := make([]int64, 0)
	for _, smp := range s.Samples {
		sp, ok := spans[smp.QuestionID]
		if !ok {
			spans[smp.QuestionID] = &span{min: smp.Timestamp, max: smp.Timestamp}
			order = append(order, smp.QuestionID)
			continue
		}
		if smp.Timestamp < sp.min {
			sp.min = smp.Timestamp
		}
		if smp.Timestamp > sp.max {
			sp.max = smp.Timestamp
		}
	}
	total := 0.0
	for _, q := range order {
		total += spans[q].max - spans[q].min
	}
	return total
}

// NormalizedPoints returns the samples whose image dimensions are known and
// non-zero, divided by those dimensions. Other samples are skipped.
func (s Session) NormalizedPoints() []NormalizedPoint {
	out := make([]NormalizedPoint, 0, len(s.Samples))
	for _, smp := range s.Samples {
		if smp.ImageWidth == nil || smp.ImageHeight == nil || *smp.ImageWidth == 0 || *smp.ImageHeight == 0 {
			continue
		}
		out = append(out, NormalizedPoint{
			X: smp.GazeX / *smp.ImageWidth,
			Y: smp.GazeY / *smp.ImageHeight,
		})
	}
	return out
}
