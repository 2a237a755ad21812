package core

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"gaze_service/internal/domain/model"
	"gaze_service/internal/domain/repository"
)

// Training grid dimensions.
var (
	TrainingYearsOfExperience = []int{0, 2, 5, 10, 15, 20}
	TrainingDurations         = []int{15, 75, 135}
)

// SessionSeeder stores synthetic sessions as raw survey rows.
type SessionSeeder interface {
	SaveQuestion(ctx context.Context, id int64, text string) error
	SaveResponse(ctx context.Context, key model.SessionKey, questionID int64, text string) error
	InsertSamples(ctx context.Context, samples []model.GazeSample) error
	DeleteSession(ctx context.Context, key model.SessionKey) error
}

// TrainingGenerator produces the labelled synthetic dataset the classifier is
// trained on: one session per (title, years, pattern, duration) combination.
type TrainingGenerator struct {
	synth      *Synthesizer
	aggregator BatchAggregator
	recorders  []repository.TrainingDataRecorder

	seeder    SessionSeeder
	traits    repository.TraitExtractor
	questions int
}

func NewTrainingGenerator(synth *Synthesizer, recorders ...repository.TrainingDataRecorder) *TrainingGenerator {
	return &TrainingGenerator{
		synth:     synth,
		recorders: recorders,
		questions: 1,
	}
}

// WithSeeder also writes every generated session into the relational store,
// answering the trait questions so the session can be classified later.
func (g *TrainingGenerator) WithSeeder(seeder SessionSeeder, traits repository.TraitExtractor, questions int) *TrainingGenerator {
	g.seeder = seeder
	g.traits = traits
	if questions > 0 {
		g.questions = questions
	}
	return g
}

// Generate builds the grid, records it and returns the rows.
func (g *TrainingGenerator) Generate(ctx context.Context) ([]model.TrainingRow, error) {
	if g.seeder != nil {
		if err := g.seedQuestions(ctx); err != nil {
			return nil, err
		}
	}

	var rows []model.TrainingRow
	userID := int64(0)
	for _, title := range model.Titles {
		for _, yoe := range TrainingYearsOfExperience {
			for _, pattern := range Patterns {
				for _, duration := range TrainingDurations {
					userID++
					key := model.SessionKey{UserID: userID, SurveyID: 1}
					demo := model.Demographics{YearsOfExperience: yoe, Title: title}

					row, err := g.session(ctx, key, demo, pattern, duration)
					if err != nil {
						return nil, fmt.Errorf("failed to generate session %s: %w", key, err)
					}
					rows = append(rows, row)
				}
			}
		}
	}

	for _, rec := range g.recorders {
		if err := rec.SaveTrainingData(ctx, rows); err != nil {
			return nil, fmt.Errorf("failed to record training data: %w", err)
		}
	}
	slog.Info("training data generated", "rows", len(rows), "recorders", len(g.recorders))
	return rows, nil
}

func (g *TrainingGenerator) session(ctx context.Context, key model.SessionKey, demo model.Demographics, pattern Pattern, duration int) (model.TrainingRow, error) {
	var fv model.FeatureVector
	if g.seeder == nil {
		points, err := g.synth.Generate(pattern, duration*model.GazeFrequency)
		if err != nil {
			return model.TrainingRow{}, err
		}
		normalized := model.Normalize(points, float64(g.synth.width), float64(g.synth.height))
		fv = g.aggregator.Aggregate(normalized, float64(duration), demo)
	} else {
		sess, err := g.synth.Session(key, pattern, duration, g.questions)
		if err != nil {
			return model.TrainingRow{}, err
		}
		if err := g.seed(ctx, sess, demo); err != nil {
			return model.TrainingRow{}, err
		}
		fv = g.aggregator.Aggregate(sess.NormalizedPoints(), float64(duration), demo)
	}

	return model.TrainingRow{FeatureVector: fv, Label: LabelFeatures(fv)}, nil
}

// Trait questions get ids after the gaze questions of a session.
func (g *TrainingGenerator) traitQuestionID(t repository.Trait) int64 {
	switch t {
	case repository.TraitYearsOfExperience:
		return int64(g.questions) + 1
	default:
		return int64(g.questions) + 2
	}
}

func (g *TrainingGenerator) seedQuestions(ctx context.Context) error {
	for q := 1; q <= g.questions; q++ {
		if err := g.seeder.SaveQuestion(ctx, int64(q), fmt.Sprintf("Image %d", q)); err != nil {
			return err
		}
	}
	for _, t := range []repository.Trait{repository.TraitYearsOfExperience, repository.TraitTitle} {
		if err := g.seeder.SaveQuestion(ctx, g.traitQuestionID(t), g.traits[t]); err != nil {
			return err
		}
	}
	return nil
}

// seed replaces whatever an earlier run stored under the session key.
func (g *TrainingGenerator) seed(ctx context.Context, sess model.Session, demo model.Demographics) error {
	if err := g.seeder.DeleteSession(ctx, sess.Key); err != nil {
		return err
	}
	if err := g.seeder.InsertSamples(ctx, sess.Samples); err != nil {
		return err
	}
	answers := map[repository.Trait]string{
		repository.TraitYearsOfExperience: strconv.Itoa(demo.YearsOfExperience),
		repository.TraitTitle:             string(demo.Title),
	}
	for _, t := range []repository.Trait{repository.TraitYearsOfExperience, repository.TraitTitle} {
		if err := g.seeder.SaveResponse(ctx, sess.Key, g.traitQuestionID(t), answers[t]); err != nil {
			return err
		}
	}
	return nil
}
