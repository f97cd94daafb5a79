package client

import (
	"context"
	"encoding/json"
	"log"

	"liveroom/pkg/interfaces"
	"liveroom/pkg/types"
)

// ReplayResult is what a (re)joining client reconstructs from the
// history dump: the chat transcript and the last authoritative lesson
// state. Both are derived independently from the same entry list.
type ReplayResult struct {
	Chat   []types.ChatMessage
	Lesson *types.LessonUpdate
	Zone   *types.Envelope // last ZONE_STATE_UPDATE, if any
}

// ApplyHistory folds a history dump into a replay result.
//
// Chat entries keep arrival order. The lesson is found by scanning the
// dump in reverse: only the last navigation entry is valid, earlier
// ones are superseded, so searching forward would be wrong whenever a
// lesson was navigated more than once.
func ApplyHistory(dump types.HistoryDump) *ReplayResult {
	result := &ReplayResult{}

	for _, entry := range dump.Data {
		if entry.Type != types.MessageTypeChat {
			continue
		}
		var msg types.ChatMessage
		if err := json.Unmarshal(entry.Payload, &msg); err != nil {
			log.Printf("Skipping undecodable chat entry: %v", err)
			continue
		}
		result.Chat = append(result.Chat, msg)
	}

	for i := len(dump.Data) - 1; i >= 0; i-- {
		entry := dump.Data[i]
		switch entry.Type {
		case types.MessageTypeLessonUpdate:
			if result.Lesson == nil {
				var update types.LessonUpdate
				if err := json.Unmarshal(entry.Payload, &update); err != nil {
					log.Printf("Skipping undecodable lesson entry: %v", err)
					continue
				}
				result.Lesson = &update
			}
		case types.MessageTypeZoneStateUpdate:
			if result.Zone == nil {
				var data map[string]any
				if err := json.Unmarshal(entry.Payload, &data); err != nil {
					continue
				}
				result.Zone = &types.Envelope{Type: types.MessageTypeZoneStateUpdate, Data: data}
			}
		}
		if result.Lesson != nil && result.Zone != nil {
			break
		}
	}

	return result
}

// ResolveLesson returns a usable lesson from the replay result,
// fetching the body from the content API when the logged snapshot does
// not resolve. The fallback is best-effort: on failure the client
// stays in a waiting-for-live-update state rather than erroring.
func ResolveLesson(ctx context.Context, result *ReplayResult, fetcher interfaces.LessonFetcher) *types.LessonUpdate {
	if result.Lesson == nil {
		return nil
	}
	lesson := result.Lesson
	if lesson.Lesson.ID == "" {
		return nil
	}
	if resolved(lesson.Lesson) {
		return lesson
	}
	if fetcher == nil {
		return nil
	}

	fetched, err := fetcher.FetchLesson(ctx, lesson.Lesson.ID)
	if err != nil {
		log.Printf("Lesson fallback fetch failed: id=%s err=%v", lesson.Lesson.ID, err)
		return nil
	}
	return &types.LessonUpdate{Lesson: *fetched, SlideIndex: lesson.SlideIndex}
}

// resolved reports whether a logged snapshot carries an actual lesson
// body, not just a reference.
func resolved(lesson types.LessonSnapshot) bool {
	return len(lesson.Activities) > 0 || lesson.Title != ""
}
