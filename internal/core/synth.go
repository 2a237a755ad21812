package core

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gaze_service/internal/domain/model"
)

// Pattern is a spatial gaze pattern used to synthesize training sessions.
type Pattern string

const (
	PatternBorder    Pattern = "border"
	PatternCenter    Pattern = "center"
	PatternAllAround Pattern = "all_around"
)

// Patterns lists every pattern in training-grid order.
var Patterns = []Pattern{PatternBorder, PatternCenter, PatternAllAround}

const (
	borderBand  = 11
	centerSigma = 10.0
)

// Synthesizer draws gaze points for an image of fixed size.
type Synthesizer struct {
	rng    *rand.Rand
	width  int
	height int
}

// NewSynthesizer returns a synthesizer over the default survey image size.
func NewSynthesizer(rng *rand.Rand) *Synthesizer {
	return NewSynthesizerForImage(rng, model.ImageWidth, model.ImageHeight)
}

func NewSynthesizerForImage(rng *rand.Rand, width, height int) *Synthesizer {
	return &Synthesizer{rng: rng, width: width, height: height}
}

// NewSeededRand returns a deterministic random source.
func NewSeededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Generate returns n points following the pattern.
func (s *Synthesizer) Generate(pattern Pattern, n int) ([]model.GazePoint, error) {
	points := make([]model.GazePoint, 0, n)
	for i := 0; i < n; i++ {
		var x, y int
		switch pattern {
		case PatternBorder:
			x, y = s.borderPoint()
		case PatternCenter:
			x = s.normalCoord(s.width)
			y = s.normalCoord(s.height)
		case PatternAllAround:
			x = s.rng.IntN(s.width)
			y = s.rng.IntN(s.height)
		default:
			return nil, fmt.Errorf("unknown gaze pattern %q", pattern)
		}
		points = append(points, model.GazePoint{X: float64(x), Y: float64(y)})
	}
	return points, nil
}

func (s *Synthesizer) borderPoint() (int, int) {
	switch s.rng.IntN(4) {
	case 0: // top
		return s.rng.IntN(s.width), s.randInt(0, borderBand-1)
	case 1: // bottom
		return s.rng.IntN(s.width), s.randInt(s.height-borderBand, s.height-1)
	case 2: // left
		return s.randInt(0, borderBand-1), s.rng.IntN(s.height)
	default: // right
		return s.randInt(s.width-borderBand, s.width-1), s.rng.IntN(s.height)
	}
}

// randInt is uniform over the closed range [lo, hi].
func (s *Synthesizer) randInt(lo, hi int) int {
	return lo + s.rng.IntN(hi-lo+1)
}

func (s *Synthesizer) normalCoord(size int) int {
	v := s.rng.NormFloat64()*centerSigma + float64(size)/2
	v = math.Max(0, math.Min(v, float64(size-1)))
	return int(v)
}

// Session spreads a generated pattern over the given number of questions so
// that the samples cover duration seconds at the gaze frequency. Each question
// receives a contiguous block of samples spanning duration/questions seconds;
// the total view time equals duration as long as every block has two or more
// samples.
func (s *Synthesizer) Session(key model.SessionKey, pattern Pattern, duration, questions int) (model.Session, error) {
	if questions < 1 {
		return model.Session{}, fmt.Errorf("questions must be positive, got %d", questions)
	}
	points, err := s.Generate(pattern, duration*model.GazeFrequency)
	if err != nil {
		return model.Session{}, err
	}

	width, height := float64(s.width), float64(s.height)
	span := float64(duration) / float64(questions)
	samples := make([]model.GazeSample, 0, len(points))

	for q := 0; q < questions; q++ {
		lo := q * len(points) / questions
		hi := (q + 1) * len(points) / questions
		block := points[lo:hi]
		start := float64(q) * span
		for k, p := range block {
			ts := start
			if len(block) > 1 {
				ts = start + span*float64(k)/float64(len(block)-1)
			}
			samples = append(samples, model.GazeSample{
				UserID:      key.UserID,
				SurveyID:    key.SurveyID,
				QuestionID:  int64(q + 1),
				Timestamp:   ts,
				GazeX:       p.X,
				GazeY:       p.Y,
				ImageWidth:  &width,
				ImageHeight: &height,
			})
		}
	}
	return model.Session{Key: key, Samples: samples}, nil
}
