package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"daily-reflection-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Field names within the state hash. They mirror the original per-key
// layout: one field per persisted value.
const (
	fieldSelectedCategory   = "lastSelectedCategory"
	fieldLastAnsweredDate   = "lastAnsweredDate"
	fieldLastAnswer         = "lastAnswer"
	fieldAnsweredDates      = "answeredDates"
	fieldAnsweredCategories = "answeredCategoriesForToday"
)

// StateStore persists tracker state in a single Redis hash. All fields are
// written in one HSET, so a submission is never half-persisted. Missing or
// malformed fields degrade to their zero values on load.
type StateStore struct {
	client    *redis.Client
	namespace string
}

func NewStateStore(client *redis.Client, namespace string) *StateStore {
	if namespace == "" {
		namespace = "reflect"
	}
	return &StateStore{client: client, namespace: namespace}
}

func (s *StateStore) Load(ctx context.Context) (domain.PersistedState, error) {
	fields, err := s.client.HGetAll(ctx, s.key()).Result()
	if err != nil {
		return domain.PersistedState{}, err
	}

	var state domain.PersistedState
	if raw, ok := fields[fieldSelectedCategory]; ok {
		if idx, err := strconv.Atoi(raw); err == nil {
			state.SelectedCategoryIndex = &idx
		}
	}
	if raw, ok := fields[fieldLastAnsweredDate]; ok {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			state.LastAnsweredAt = ts
		}
	}
	state.LastAnswer = fields[fieldLastAnswer]
	state.AnsweredDates = decodeStrings(fields[fieldAnsweredDates])
	state.AnsweredCategoriesToday = decodeStrings(fields[fieldAnsweredCategories])
	return state, nil
}

func (s *StateStore) Save(ctx context.Context, state domain.PersistedState) error {
	values := map[string]interface{}{
		fieldLastAnswer:         state.LastAnswer,
		fieldAnsweredDates:      encodeStrings(state.AnsweredDates),
		fieldAnsweredCategories: encodeStrings(state.AnsweredCategoriesToday),
	}
	if state.SelectedCategoryIndex != nil {
		values[fieldSelectedCategory] = strconv.Itoa(*state.SelectedCategoryIndex)
	}
	if !state.LastAnsweredAt.IsZero() {
		values[fieldLastAnsweredDate] = state.LastAnsweredAt.Format(time.RFC3339Nano)
	}
	return s.client.HSet(ctx, s.key(), values).Err()
}

func (s *StateStore) key() string {
	return s.namespace + ":state"
}

func encodeStrings(values []string) string {
	if values == nil {
		values = []string{}
	}
	data, _ := json.Marshal(values)
	return string(data)
}

func decodeStrings(raw string) []string {
	if raw == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	return values
}
