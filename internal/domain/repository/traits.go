package repository

import (
	"fmt"
	"sort"
	"strings"
)

// Trait is a demographic field pivoted out of free-text survey answers.
type Trait string

const (
	TraitYearsOfExperience Trait = "years_of_experience"
	TraitTitle             Trait = "title"
)

var requiredTraits = []Trait{TraitYearsOfExperience, TraitTitle}

// TraitExtractor maps each trait to the exact question text that asks for it.
type TraitExtractor map[Trait]string

// DefaultTraits matches the questions of the dermatology image survey.
func DefaultTraits() TraitExtractor {
	return TraitExtractor{
		TraitYearsOfExperience: "How many years of dermatology experience do you have?",
		TraitTitle:             "Select your position:",
	}
}

// TraitsFromConfig converts a name->question mapping.
func TraitsFromConfig(m map[string]string) (TraitExtractor, error) {
	t := make(TraitExtractor, len(m))
	for name, question := range m {
		t[Trait(name)] = question
	}
	return t, t.Validate()
}

// Validate checks that every required trait has a question and no unknown
// trait is configured. Trait names become column aliases, so only the known
// set is accepted.
func (t TraitExtractor) Validate() error {
	for _, name := range requiredTraits {
		if strings.TrimSpace(t[name]) == "" {
			return fmt.Errorf("trait %q has no question text", name)
		}
	}
	for name := range t {
		if !isKnownTrait(name) {
			return fmt.Errorf("unknown trait %q", name)
		}
	}
	return nil
}

func isKnownTrait(name Trait) bool {
	for _, known := range requiredTraits {
		if name == known {
			return true
		}
	}
	return false
}

// pivotQuery builds the demographic projection: one row per (user, survey)
// with one column per trait, taking MAX over the matching answers.
func (t TraitExtractor) pivotQuery(userID, surveyID int64) (string, []interface{}) {
	traits := make([]Trait, 0, len(t))
	for name := range t {
		traits = append(traits, name)
	}
	sort.Slice(traits, func(i, j int) bool { return traits[i] < traits[j] })

	var cols []string
	var args []interface{}
	for _, name := range traits {
		cols = append(cols, fmt.Sprintf(
			"MAX(CASE WHEN q.question_text = ? THEN r.response_text END) AS %s", name))
		args = append(args, t[name])
	}

	in := make([]string, len(traits))
	for i, name := range traits {
		in[i] = "?"
		args = append(args, t[name])
	}
	args = append(args, userID, surveyID)

	query := fmt.Sprintf(`
		SELECT
			r.user_id,
			r.survey_id,
			%s
		FROM responses r
		JOIN questions q ON r.question_id = q.id
		WHERE q.question_text IN (%s)
		AND r.user_id = ? AND r.survey_id = ?
		GROUP BY r.user_id, r.survey_id`,
		strings.Join(cols, ",\n\t\t\t"),
		strings.Join(in, ", "),
	)
	return query, args
}
