// Package aigateway calls the upstream chat-completions API that turns raw
// syllabus text into the fixed seven-chapter quiz payload.
package aigateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"territory-quiz-service/internal/domain"
)

const defaultModel = "google/gemini-3-flash-preview"

const systemPrompt = `You are an educational content parser. Given a syllabus or study material, create exactly 7 chapters/levels. For each chapter generate exactly 5 multiple-choice questions with 4 options each. Return ONLY valid JSON with this exact structure (no markdown, no code blocks):
{
  "chapters": [
    {
      "chapterNumber": 1,
      "title": "Short Chapter Title",
      "questions": [
        {
          "question": "Question text?",
          "options": ["Option A", "Option B", "Option C", "Option D"],
          "correctAnswer": 0,
          "difficulty": "easy"
        }
      ],
      "timeLimit": 120
    }
  ]
}

Rules:
- Exactly 7 chapters
- Exactly 5 questions per chapter
- correctAnswer is the 0-based index of the correct option
- difficulty: "easy" for chapters 1-2, "medium" for 3-5, "hard" for 6-7
- timeLimit: 180 for easy, 120 for medium, 90 for hard
- Questions should test understanding, not just memorization
- Make questions progressively harder`

// syllabusToolSchema is the function-call parameter schema the model is
// forced to fill, so the response arrives as structured arguments instead of
// free text.
const syllabusToolSchema = `{
  "type": "object",
  "properties": {
    "chapters": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "chapterNumber": {"type": "number"},
          "title": {"type": "string"},
          "questions": {
            "type": "array",
            "items": {
              "type": "object",
              "properties": {
                "question": {"type": "string"},
                "options": {"type": "array", "items": {"type": "string"}},
                "correctAnswer": {"type": "number"},
                "difficulty": {"type": "string", "enum": ["easy", "medium", "hard"]}
              },
              "required": ["question", "options", "correctAnswer", "difficulty"],
              "additionalProperties": false
            }
          },
          "timeLimit": {"type": "number"}
        },
        "required": ["chapterNumber", "title", "questions", "timeLimit"],
        "additionalProperties": false
      }
    }
  },
  "required": ["chapters"],
  "additionalProperties": false
}`

// Client calls the AI gateway's chat-completions endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

func NewClient(baseURL, apiKey, model string) *Client {
	if model == "" {
		model = defaultModel
	}
	return &Client{
		httpClient: &http.Client{Timeout: 90 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Tools      []chatTool    `json:"tools"`
	ToolChoice toolChoice    `json:"tool_choice"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type toolChoice struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateSyllabus sends the bounded syllabus text upstream and decodes the
// forced create_syllabus tool call. Rate-limit and quota responses map to
// their own sentinels so the transport can surface distinct statuses.
func (c *Client) GenerateSyllabus(ctx context.Context, content string) (domain.Syllabus, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Parse this syllabus into 7 chapters with quiz questions:\n\n" + content},
		},
		Tools: []chatTool{{
			Type: "function",
			Function: toolFunction{
				Name:        "create_syllabus",
				Description: "Create a structured syllabus with 7 chapters and quiz questions",
				Parameters:  json.RawMessage(syllabusToolSchema),
			},
		}},
		ToolChoice: toolChoice{Type: "function", Function: toolFunction{Name: "create_syllabus"}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.Syllabus{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return domain.Syllabus{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Syllabus{}, fmt.Errorf("%w: %v", domain.ErrGeneratorFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.Syllabus{}, domain.ErrRateLimited
	case resp.StatusCode == http.StatusPaymentRequired:
		return domain.Syllabus{}, domain.ErrQuotaExhausted
	case resp.StatusCode != http.StatusOK:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return domain.Syllabus{}, fmt.Errorf("%w: status %d: %s", domain.ErrGeneratorFailed, resp.StatusCode, raw)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Syllabus{}, fmt.Errorf("%w: decode response: %v", domain.ErrGeneratorFailed, err)
	}
	if len(decoded.Choices) == 0 {
		return domain.Syllabus{}, fmt.Errorf("%w: empty response", domain.ErrGeneratorFailed)
	}

	// Prefer the tool-call arguments; fall back to the message content.
	raw := decoded.Choices[0].Message.Content
	if calls := decoded.Choices[0].Message.ToolCalls; len(calls) > 0 {
		raw = calls[0].Function.Arguments
	}

	var syllabus domain.Syllabus
	if err := json.Unmarshal([]byte(raw), &syllabus); err != nil {
		return domain.Syllabus{}, fmt.Errorf("%w: decode syllabus: %v", domain.ErrGeneratorFailed, err)
	}
	return syllabus, nil
}
