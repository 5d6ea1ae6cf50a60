package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"territory-quiz-service/internal/app"
	"territory-quiz-service/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.Service
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.Service) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startQuizPayload struct {
	ChapterNumber int `json:"chapterNumber"`
}

type answerPayload struct {
	Option int `json:"option"`
}

type questionFrame struct {
	ChapterNumber  int      `json:"chapterNumber"`
	QuestionIndex  int      `json:"questionIndex"`
	TotalQuestions int      `json:"totalQuestions"`
	Prompt         string   `json:"prompt"`
	Options        []string `json:"options"`
	Remaining      int      `json:"remaining"` // seconds left on the countdown
}

type roomFrame struct {
	Room        domain.Room               `json:"room"`
	Members     []domain.RoomMember       `json:"members"`
	Progress    []domain.Progress         `json:"progress"`
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the room.
// Clients receive a full room frame on connect and again after every change
// event; quiz attempts are driven server-side via startQuiz/answer messages.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	userID := r.URL.Query().Get("userId")
	if roomID == "" || userID == "" {
		http.Error(w, "missing roomId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancelCtx := context.WithCancel(r.Context())
	defer cancelCtx()

	snap, err := h.service.Snapshot(ctx, roomID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	if !snapHasMember(snap, userID) {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: domain.ErrMemberNotFound.Error()}})
		return
	}

	updates, cancel, err := h.service.Subscribe(ctx, roomID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// The attempt timer and the updates goroutine both produce frames, so the
	// send channel is never closed; producers race against closeSignals
	// instead.
	trySend := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-closeSignals:
		}
	}

	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-send:
				if err := conn.WriteJSON(msg); err != nil {
					log.Printf("ws write error: %v", err)
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case _, ok := <-updates:
				if !ok {
					return
				}
				frame, err := h.roomFrame(ctx, roomID)
				if err != nil {
					continue
				}
				trySend(outboundMessage[any]{Type: "room", Payload: frame})
			case <-closeSignals:
				return
			}
		}
	}()

	if frame, err := h.roomFrame(ctx, roomID); err == nil {
		trySend(outboundMessage[any]{Type: "room", Payload: frame})
	}

	var (
		attempt        *app.Attempt
		attemptChapter int
	)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "startQuiz":
			var payload startQuizPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				trySend(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid startQuiz payload"}})
				continue
			}
			if attempt != nil && !attempt.Finished() {
				trySend(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "quiz already in progress"}})
				continue
			}
			next, err := h.startQuiz(ctx, roomID, userID, payload.ChapterNumber, trySend)
			if err != nil {
				trySend(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
				continue
			}
			attempt = next
			attemptChapter = payload.ChapterNumber
			trySend(outboundMessage[any]{Type: "question", Payload: currentQuestion(attempt, attemptChapter)})
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				trySend(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}})
				continue
			}
			if attempt == nil {
				trySend(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "no quiz in progress"}})
				continue
			}
			outcome, err := attempt.Answer(payload.Option)
			if err != nil {
				trySend(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
				continue
			}
			trySend(outboundMessage[any]{Type: "answerResult", Payload: outcome})
			if !outcome.Finished {
				trySend(outboundMessage[any]{Type: "question", Payload: currentQuestion(attempt, attemptChapter)})
			}
		case "closeQuiz":
			if attempt != nil {
				attempt.Close()
				attempt = nil
			}
		default:
			trySend(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	if attempt != nil {
		attempt.Close()
	}
	close(closeSignals)
	<-updatesDone
	<-writerDone
}

// startQuiz gates the attempt on the unlock policy and wires its single
// finish report into the scoring engine.
func (h *WSHandler) startQuiz(ctx context.Context, roomID, userID string, chapterNumber int, trySend func(outboundMessage[any])) (*app.Attempt, error) {
	snap, err := h.service.Snapshot(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if snap.Room.Syllabus == nil {
		return nil, domain.ErrSyllabusMissing
	}
	chapter, ok := snap.Room.Syllabus.Chapter(chapterNumber)
	if !ok {
		return nil, domain.ErrChapterNotFound
	}

	switch h.service.Territories().EffectiveStatus(snap.Progress, userID, chapterNumber) {
	case domain.StatusLocked:
		return nil, domain.ErrChapterLocked
	case domain.StatusConquered:
		return nil, domain.ErrChapterConquered
	}

	attempt := app.NewAttempt(chapter, func(score, timeTaken int) {
		outcome, err := h.service.CompleteQuiz(ctx, userID, roomID, app.QuizResult{
			ChapterNumber: chapterNumber,
			Score:         score,
			TimeTaken:     timeTaken,
		})
		if err != nil {
			trySend(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return
		}
		trySend(outboundMessage[any]{Type: "quizOutcome", Payload: outcome})
	})
	attempt.Start(ctx)
	return attempt, nil
}

func (h *WSHandler) roomFrame(ctx context.Context, roomID string) (roomFrame, error) {
	snap, err := h.service.Snapshot(ctx, roomID)
	if err != nil {
		return roomFrame{}, err
	}
	return roomFrame{
		Room:        snap.Room,
		Members:     snap.Members,
		Progress:    snap.Progress,
		Leaderboard: app.BuildLeaderboard(snap.Members, snap.Progress),
	}, nil
}

// currentQuestion builds the frame for the attempt's current question.
// Correct indices are revealed only through answerResult frames.
func currentQuestion(attempt *app.Attempt, chapterNumber int) questionFrame {
	question, index := attempt.Question()
	return questionFrame{
		ChapterNumber:  chapterNumber,
		QuestionIndex:  index,
		TotalQuestions: domain.QuestionsPerChapter,
		Prompt:         question.Prompt,
		Options:        question.Options,
		Remaining:      attempt.Remaining(),
	}
}

func snapHasMember(snap domain.RoomSnapshot, userID string) bool {
	for _, m := range snap.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
