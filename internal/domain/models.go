package domain

import "time"

// DayKeyLayout is the canonical calendar-day encoding (local time zone).
const DayKeyLayout = "2006-01-02"

// DayKey truncates t to local-day granularity and encodes it as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.Local().Format(DayKeyLayout)
}

// Question is a single reflective prompt. Choices is empty for free-text
// questions and holds the fixed, ordered options for multiple-choice ones.
type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices,omitempty"`
}

// FreeText reports whether the question takes a free-form answer.
func (q Question) FreeText() bool {
	return len(q.Choices) == 0
}

// Category groups related prompts under a display name and icon.
// Categories are immutable after catalog construction.
type Category struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Icon      string     `json:"icon"`
	Questions []Question `json:"questions"`
}

// QuestionOfDay selects the category's prompt for the calendar day of `at`
// via ordinal day-of-year modulo the question count. The same question
// recurs on the same calendar day across years.
func (c Category) QuestionOfDay(at time.Time) Question {
	return c.Questions[at.Local().YearDay()%len(c.Questions)]
}

// Catalog is the fixed, ordered set of categories.
type Catalog struct {
	ID         string     `json:"id"`
	Categories []Category `json:"categories"`
}

// ByID returns the category with the given ID.
func (c Catalog) ByID(id string) (Category, bool) {
	for _, cat := range c.Categories {
		if cat.ID == id {
			return cat, true
		}
	}
	return Category{}, false
}

// ByIndex returns the category at the given catalog position.
func (c Catalog) ByIndex(i int) (Category, bool) {
	if i < 0 || i >= len(c.Categories) {
		return Category{}, false
	}
	return c.Categories[i], true
}

// IndexOf returns the catalog position of the category with the given ID.
func (c Catalog) IndexOf(id string) (int, bool) {
	for i, cat := range c.Categories {
		if cat.ID == id {
			return i, true
		}
	}
	return 0, false
}

// Validate rejects catalogs whose day-of-year indexing would be undefined.
func (c Catalog) Validate() error {
	if len(c.Categories) == 0 {
		return ErrEmptyCatalog
	}
	for _, cat := range c.Categories {
		if len(cat.Questions) == 0 {
			return ErrEmptyCategory
		}
	}
	return nil
}

// PersistedState is the durable snapshot of the tracker. It replaces the
// original loose per-key encoding with one typed schema; each field still
// corresponds to one storage entry.
type PersistedState struct {
	// SelectedCategoryIndex is the catalog position of the last active
	// category, or nil when no category was ever selected.
	SelectedCategoryIndex *int `json:"selectedCategoryIndex"`
	// LastAnsweredAt is the instant of the most recent submission.
	LastAnsweredAt time.Time `json:"lastAnsweredAt"`
	// LastAnswer is the text of the most recent submission.
	LastAnswer string `json:"lastAnswer"`
	// AnsweredDates holds every calendar day (YYYY-MM-DD) ever answered.
	AnsweredDates []string `json:"answeredDates"`
	// AnsweredCategoriesToday holds the category IDs answered on the
	// calendar day of LastAnsweredAt. Stale once that day has passed.
	AnsweredCategoriesToday []string `json:"answeredCategoriesToday"`
}

// StateSnapshot is the UI-observable tracker state.
type StateSnapshot struct {
	SelectedCategoryID string    `json:"selectedCategoryId,omitempty"`
	Question           Question  `json:"question"`
	CurrentAnswerText  string    `json:"currentAnswerText"`
	HasAnsweredToday   bool      `json:"hasAnsweredToday"`
	AnsweredDates      []string  `json:"answeredDates"`
	AnsweredCategories []string  `json:"answeredCategoriesToday"`
	UpdatedAt          time.Time `json:"updatedAt"`
}
