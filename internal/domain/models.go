package domain

import "time"

// Status is the per-user, per-chapter progress state.
type Status string

const (
	StatusLocked    Status = "locked"
	StatusAvailable Status = "available"
	StatusConquered Status = "conquered"
	StatusContested Status = "contested"
)

// ChapterCount is the fixed size of a generated syllabus.
const ChapterCount = 7

// QuestionsPerChapter is the fixed number of questions per chapter.
const QuestionsPerChapter = 5

// OptionsPerQuestion is the fixed number of options per question.
const OptionsPerQuestion = 4

// ConquerThreshold is the minimum score needed to conquer a chapter.
const ConquerThreshold = 3

// Question models an MCQ question with a zero-based correct option index.
type Question struct {
	Prompt        string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Difficulty    string   `json:"difficulty"` // easy | medium | hard
}

// Chapter is one of the seven quiz territories of a room.
type Chapter struct {
	ChapterNumber int        `json:"chapterNumber"`
	Title         string     `json:"title"`
	Questions     []Question `json:"questions"`
	TimeLimit     int        `json:"timeLimit"` // seconds
}

// Syllabus is the generated chapter payload attached to a room.
type Syllabus struct {
	Chapters []Chapter `json:"chapters"`
}

// Chapter returns the chapter with the given number, if present.
func (s Syllabus) Chapter(number int) (Chapter, bool) {
	for _, ch := range s.Chapters {
		if ch.ChapterNumber == number {
			return ch, true
		}
	}
	return Chapter{}, false
}

// Room is a shared competitive space joined via a 6-character code.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	JoinCode  string    `json:"joinCode"`
	CreatedBy string    `json:"createdBy"`
	Syllabus  *Syllabus `json:"syllabus,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// RoomMember is one user's membership in a room.
type RoomMember struct {
	RoomID      string    `json:"roomId"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Color       string    `json:"color"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Progress is the durable record of one user's standing on one chapter.
// The (UserID, RoomID, ChapterNumber) triple is unique; rows are upserted,
// never deleted.
type Progress struct {
	UserID         string     `json:"userId"`
	RoomID         string     `json:"roomId"`
	ChapterNumber  int        `json:"chapterNumber"`
	Status         Status     `json:"status"`
	Score          int        `json:"score"`
	CompletionTime *int       `json:"completionTime,omitempty"` // seconds
	Points         int        `json:"points"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// LeaderboardEntry is the derived per-member standing; never stored.
type LeaderboardEntry struct {
	UserID               string `json:"userId"`
	DisplayName          string `json:"displayName"`
	Color                string `json:"color"`
	TotalPoints          int    `json:"totalPoints"`
	TerritoriesConquered int    `json:"territoriesConquered"`
}

// RoomSnapshot is the full shared state of one room, reloaded wholesale on
// every change notification.
type RoomSnapshot struct {
	Room     Room         `json:"room"`
	Members  []RoomMember `json:"members"`
	Progress []Progress   `json:"progress"`
}

// RoomEvent signals that a room's shared records changed; subscribers react
// by re-deriving state from a fresh snapshot.
type RoomEvent struct {
	RoomID string `json:"roomId"`
	Table  string `json:"table"` // progress | room_members | rooms
}

// MemberColors is the fixed display palette; members are assigned colors by
// join order, wrapping after eight.
var MemberColors = []string{
	"#3b82f6", "#10b981", "#f59e0b", "#ef4444",
	"#8b5cf6", "#ec4899", "#06b6d4", "#84cc16",
}

// ColorForMemberIndex maps a zero-based join index onto the palette.
func ColorForMemberIndex(i int) string {
	if i < 0 {
		i = 0
	}
	return MemberColors[i%len(MemberColors)]
}
