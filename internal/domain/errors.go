package domain

import "errors"

var (
	// ErrRoomNotFound is returned when a room ID or join code matches nothing.
	ErrRoomNotFound = errors.New("room not found")
	// ErrMemberNotFound is returned when a user acts in a room they never joined.
	ErrMemberNotFound = errors.New("member not found in room")
	// ErrSyllabusMissing indicates the room has no generated syllabus yet.
	ErrSyllabusMissing = errors.New("room has no syllabus")
	// ErrSyllabusAlreadySet guards the one-time syllabus attachment.
	ErrSyllabusAlreadySet = errors.New("room syllabus already set")
	// ErrInvalidSyllabus indicates generated content violates the chapter schema.
	ErrInvalidSyllabus = errors.New("invalid syllabus payload")
	// ErrChapterNotFound indicates a chapter number outside the syllabus.
	ErrChapterNotFound = errors.New("chapter not found")
	// ErrInvalidQuizResult indicates a malformed attempt result.
	ErrInvalidQuizResult = errors.New("invalid quiz result")
	// ErrMissingInput is returned when a required request field is empty.
	ErrMissingInput = errors.New("missing required input")
	// ErrChapterLocked is returned when starting a quiz on a locked chapter.
	ErrChapterLocked = errors.New("chapter is locked")
	// ErrChapterConquered is returned when re-attempting a conquered chapter.
	ErrChapterConquered = errors.New("chapter already conquered")
	// ErrInvalidOption indicates an answer option index out of range.
	ErrInvalidOption = errors.New("option index out of range")
	// ErrAttemptFinished is returned when acting on a finished quiz attempt.
	ErrAttemptFinished = errors.New("quiz attempt already finished")
	// ErrRateLimited maps the upstream generator's rate-limit response.
	ErrRateLimited = errors.New("generator rate limit exceeded")
	// ErrQuotaExhausted maps the upstream generator's payment-required response.
	ErrQuotaExhausted = errors.New("generator credits exhausted")
	// ErrGeneratorFailed covers other upstream generator failures.
	ErrGeneratorFailed = errors.New("syllabus generation failed")
)
