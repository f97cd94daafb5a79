package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"liveroom/pkg/types"
)

// LessonAPI fetches lesson bodies from the external content service.
// It only serves the replay fallback path, so it sits behind a circuit
// breaker: a dead content API should fail reconnects fast, not stall
// them.
type LessonAPI struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewLessonAPI(baseURL string) *LessonAPI {
	return &LessonAPI{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "lesson-api",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

// FetchLesson implements interfaces.LessonFetcher.
func (a *LessonAPI) FetchLesson(ctx context.Context, lessonID string) (*types.LessonSnapshot, error) {
	result, err := a.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s/lessons/%s", a.baseURL, lessonID), nil)
		if err != nil {
			return nil, err
		}
		resp, err := a.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("lesson API returned %d", resp.StatusCode)
		}
		var lesson types.LessonSnapshot
		if err := json.NewDecoder(resp.Body).Decode(&lesson); err != nil {
			return nil, fmt.Errorf("failed to decode lesson body: %w", err)
		}
		return &lesson, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*types.LessonSnapshot), nil
}
