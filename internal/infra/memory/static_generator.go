package memory

import (
	"context"

	"territory-quiz-service/internal/domain"
)

// StaticSyllabusGenerator returns a fixed syllabus regardless of input
// (useful for tests/demos without the AI gateway).
type StaticSyllabusGenerator struct {
	syllabus domain.Syllabus
}

func NewStaticSyllabusGenerator(syllabus domain.Syllabus) *StaticSyllabusGenerator {
	return &StaticSyllabusGenerator{syllabus: syllabus}
}

func (g *StaticSyllabusGenerator) GenerateSyllabus(_ context.Context, _ string) (domain.Syllabus, error) {
	return g.syllabus, nil
}
