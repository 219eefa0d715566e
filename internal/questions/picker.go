package questions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"peerprep/interview/internal/models"
)

// maxAttempts bounds how often the picker re-rolls when the question service
// hands back the question that is already active.
const maxAttempts = 3

var ErrNoQuestion = errors.New("question service returned no question")

// Picker chooses a question for a session.
type Picker interface {
	PickQuestion(ctx context.Context, s *models.ScheduledSession) (string, error)
}

// HTTPPicker asks the question service for a random question matching the
// session's level and interview type.
type HTTPPicker struct {
	baseURL string
	client  *http.Client
}

func NewHTTPPicker(baseURL string, client *http.Client) *HTTPPicker {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPPicker{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type questionResponse struct {
	ID    json.RawMessage `json:"id"`
	Title string          `json:"title"`
}

func (p *HTTPPicker) PickQuestion(ctx context.Context, s *models.ScheduledSession) (string, error) {
	current := ""
	if s.QuestionID != nil {
		current = *s.QuestionID
	}

	var id string
	for attempt := 0; attempt < maxAttempts; attempt++ {
		got, err := p.fetchQuestion(ctx, Difficulty(s.InterviewLevel), s.InterviewType)
		if err != nil {
			return "", err
		}
		id = got
		if id != current {
			return id, nil
		}
	}
	// The pool may only hold the active question; keeping it is still valid.
	return id, nil
}

// Fetch a random question from the question service
func (p *HTTPPicker) fetchQuestion(ctx context.Context, difficulty, topic string) (string, error) {
	q := url.Values{}
	if difficulty != "" {
		q.Set("difficulty", difficulty)
	}
	if topic != "" {
		q.Set("topic", topic)
	}
	endpoint := fmt.Sprintf("%s/questions/random?%s", p.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build question request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call question service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("question service returned status %d", resp.StatusCode)
	}

	var question questionResponse
	if err := json.NewDecoder(resp.Body).Decode(&question); err != nil {
		return "", fmt.Errorf("failed to decode question response: %w", err)
	}
	return normalizeID(question.ID)
}

// normalizeID accepts both numeric and string ids.
func normalizeID(raw json.RawMessage) (string, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return "", ErrNoQuestion
	}
	if strings.HasPrefix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal([]byte(s), &unquoted); err != nil {
			return "", fmt.Errorf("failed to decode question id: %w", err)
		}
		if unquoted == "" {
			return "", ErrNoQuestion
		}
		return unquoted, nil
	}
	return s, nil
}

// Difficulty maps an interview level onto the question service's difficulty
// vocabulary. Unknown levels pass through lower-cased.
func Difficulty(level string) string {
	switch l := strings.ToLower(strings.TrimSpace(level)); l {
	case "beginner", "junior", "entry":
		return "easy"
	case "intermediate", "mid":
		return "medium"
	case "advanced", "senior", "expert":
		return "hard"
	default:
		return l
	}
}

// StaticPicker always returns the same question. Useful when no question
// service is configured.
type StaticPicker struct {
	QuestionID string
}

func (p StaticPicker) PickQuestion(context.Context, *models.ScheduledSession) (string, error) {
	if p.QuestionID == "" {
		return "", ErrNoQuestion
	}
	return p.QuestionID, nil
}
