package app

import (
	"context"
	"sync"
	"time"

	"territory-quiz-service/internal/domain"
)

const unanswered = -1

// AnswerOutcome reveals correctness for one answered question.
type AnswerOutcome struct {
	QuestionIndex int  `json:"questionIndex"`
	Correct       bool `json:"correct"`
	CorrectAnswer int  `json:"correctAnswer"`
	Finished      bool `json:"finished"`
}

// Attempt drives one timed quiz run through its question sequence. It is
// ephemeral: terminal on the last answer or on the countdown reaching zero,
// whichever comes first, and reports its result exactly once. Unanswered
// questions count as incorrect.
type Attempt struct {
	chapter  domain.Chapter
	onFinish func(score, timeTaken int)
	now      func() time.Time

	mu        sync.Mutex
	current   int
	answers   []int
	remaining int
	finished  bool
	startedAt time.Time
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewAttempt creates an attempt for one chapter. onFinish receives the final
// (score, timeTaken) once, from whichever path finishes the attempt first.
func NewAttempt(chapter domain.Chapter, onFinish func(score, timeTaken int)) *Attempt {
	return newAttemptWithClock(chapter, onFinish, time.Now)
}

func newAttemptWithClock(chapter domain.Chapter, onFinish func(score, timeTaken int), now func() time.Time) *Attempt {
	answers := make([]int, len(chapter.Questions))
	for i := range answers {
		answers[i] = unanswered
	}
	return &Attempt{
		chapter:   chapter,
		onFinish:  onFinish,
		now:       now,
		answers:   answers,
		remaining: chapter.TimeLimit,
		startedAt: now(),
		stop:      make(chan struct{}),
	}
}

// Start launches the one-second countdown. The tick is cancelled when the
// attempt reaches a terminal state through any path.
func (a *Attempt) Start(ctx context.Context) {
	go a.run(ctx)
}

func (a *Attempt) run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.Close()
			return
		case <-a.stop:
			return
		case <-ticker.C:
			if a.tick() {
				return
			}
		}
	}
}

// tick burns one second; at zero it finishes the attempt and reports.
// Returns true once the attempt is terminal.
func (a *Attempt) tick() bool {
	a.mu.Lock()
	if a.finished {
		a.mu.Unlock()
		return true
	}
	a.remaining--
	if a.remaining > 0 {
		a.mu.Unlock()
		return false
	}
	score, taken := a.finishLocked()
	a.mu.Unlock()

	if a.onFinish != nil {
		a.onFinish(score, taken)
	}
	return true
}

// Answer records the selected option for the current question and advances.
// A selection locks the question; answering the last question finishes the
// attempt and reports the result.
func (a *Attempt) Answer(option int) (AnswerOutcome, error) {
	a.mu.Lock()
	if a.finished {
		a.mu.Unlock()
		return AnswerOutcome{}, domain.ErrAttemptFinished
	}
	question := a.chapter.Questions[a.current]
	if option < 0 || option >= len(question.Options) {
		a.mu.Unlock()
		return AnswerOutcome{}, domain.ErrInvalidOption
	}

	a.answers[a.current] = option
	outcome := AnswerOutcome{
		QuestionIndex: a.current,
		Correct:       option == question.CorrectAnswer,
		CorrectAnswer: question.CorrectAnswer,
	}

	if a.current == len(a.chapter.Questions)-1 {
		score, taken := a.finishLocked()
		outcome.Finished = true
		a.mu.Unlock()
		if a.onFinish != nil {
			a.onFinish(score, taken)
		}
		return outcome, nil
	}

	a.current++
	a.mu.Unlock()
	return outcome, nil
}

// finishLocked transitions to the terminal state; callers must hold mu and
// already know the attempt is not finished. The caller that observes the
// transition owns the single result report.
func (a *Attempt) finishLocked() (score, timeTaken int) {
	a.finished = true
	a.stopOnce.Do(func() { close(a.stop) })
	for i, ans := range a.answers {
		if ans == a.chapter.Questions[i].CorrectAnswer {
			score++
		}
	}
	timeTaken = int(a.now().Sub(a.startedAt) / time.Second)
	return score, timeTaken
}

// Close cancels the attempt without reporting a result. Safe to call from any
// path, including after a regular finish.
func (a *Attempt) Close() {
	a.mu.Lock()
	if !a.finished {
		a.finished = true
		a.stopOnce.Do(func() { close(a.stop) })
	}
	a.mu.Unlock()
}

// Finished reports whether the attempt reached a terminal state.
func (a *Attempt) Finished() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finished
}

// Question returns the current question and its zero-based index.
func (a *Attempt) Question() (domain.Question, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.chapter.Questions[a.current], a.current
}

// Remaining returns the seconds left on the countdown.
func (a *Attempt) Remaining() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.remaining
}
