package app_test

import (
	"context"
	"testing"
	"time"

	"daily-reflection-service/internal/app"
	"daily-reflection-service/internal/domain"
	"daily-reflection-service/internal/infra/memory"
)

func TestQuestionOfDayModuloIndexing(t *testing.T) {
	catalog := testCatalog()
	selfReflection, _ := catalog.ByID("self-reflection")

	// Day-of-year 7, three questions: index 7 mod 3 = 1, the second prompt.
	jan7 := time.Date(2026, 1, 7, 10, 30, 0, 0, time.Local)
	q := selfReflection.QuestionOfDay(jan7)
	if q.Prompt != "What's a habit you'd like to develop?" {
		t.Fatalf("expected second question on day 7, got %q", q.Prompt)
	}

	// Same calendar day, different wall-clock time: same question.
	if selfReflection.QuestionOfDay(jan7.Add(9*time.Hour)).ID != q.ID {
		t.Fatalf("expected same question for same calendar day")
	}

	// The index tracks day-of-year mod n across a run of days.
	n := len(selfReflection.Questions)
	for offset := 0; offset < 10; offset++ {
		day := jan7.AddDate(0, 0, offset)
		want := selfReflection.Questions[day.YearDay()%n]
		if got := selfReflection.QuestionOfDay(day); got.ID != want.ID {
			t.Fatalf("day %d: expected %q, got %q", day.YearDay(), want.Prompt, got.Prompt)
		}
	}

	// Same day-of-year in another year selects the same question.
	if selfReflection.QuestionOfDay(jan7.AddDate(1, 0, 0)).ID != q.ID {
		t.Fatalf("expected question to recur on the same day across years")
	}
}

func TestSubmitAnswerMarksDayAndCategory(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 7, 19, 0, 0, 0, time.Local)
	tracker, _ := newTestTracker(t, memory.NewStateStore(), func() time.Time { return now })

	if _, err := tracker.SelectCategory(ctx, "self-reflection"); err != nil {
		t.Fatalf("select category: %v", err)
	}
	snapshot, err := tracker.SubmitAnswer(ctx, "Content")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if !snapshot.HasAnsweredToday {
		t.Fatalf("expected hasAnsweredToday after submit")
	}
	if snapshot.CurrentAnswerText != "Content" {
		t.Fatalf("expected answer text retained, got %q", snapshot.CurrentAnswerText)
	}
	if !tracker.HasAnsweredOn(now) {
		t.Fatalf("expected today in answered dates")
	}
	if !tracker.HasAnsweredCategory("self-reflection") {
		t.Fatalf("expected self-reflection marked answered")
	}
	if tracker.HasAnsweredCategory("gratitude") {
		t.Fatalf("did not expect gratitude marked answered")
	}
}

func TestSubmitAnswerRequiresSelection(t *testing.T) {
	tracker, _ := newTestTracker(t, memory.NewStateStore(), time.Now)

	if _, err := tracker.SubmitAnswer(context.Background(), "Content"); err != domain.ErrNoCategorySelected {
		t.Fatalf("expected ErrNoCategorySelected, got %v", err)
	}
}

func TestSelectCategoryPersistsIndexForRestart(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStateStore()
	tracker, _ := newTestTracker(t, store, time.Now)

	if _, err := tracker.SelectCategory(ctx, "gratitude"); err != nil {
		t.Fatalf("select category: %v", err)
	}

	persisted, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load persisted: %v", err)
	}
	if persisted.SelectedCategoryIndex == nil || *persisted.SelectedCategoryIndex != 1 {
		t.Fatalf("expected persisted index 1, got %v", persisted.SelectedCategoryIndex)
	}

	reloaded, _ := newTestTracker(t, store, time.Now)
	if got := reloaded.Snapshot().SelectedCategoryID; got != "gratitude" {
		t.Fatalf("expected gratitude restored after restart, got %q", got)
	}
}

func TestRestoreSameDayKeepsAnswer(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 8, 0, 0, 0, time.Local)
	store := memory.NewStateStore()
	tracker, _ := newTestTracker(t, store, func() time.Time { return now })

	if _, err := tracker.SelectCategory(ctx, "self-reflection"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := tracker.SubmitAnswer(ctx, "more patience"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Restart later the same day: answer and per-category set survive.
	later := now.Add(6 * time.Hour)
	reloaded, _ := newTestTracker(t, store, func() time.Time { return later })
	snapshot := reloaded.Snapshot()
	if !snapshot.HasAnsweredToday {
		t.Fatalf("expected answered-today restored")
	}
	if snapshot.CurrentAnswerText != "more patience" {
		t.Fatalf("expected answer restored, got %q", snapshot.CurrentAnswerText)
	}
	if !reloaded.HasAnsweredCategory("self-reflection") {
		t.Fatalf("expected answered category restored")
	}
}

func TestRestoreNextDayResetsDailyState(t *testing.T) {
	ctx := context.Background()
	day1 := time.Date(2026, 3, 14, 21, 0, 0, 0, time.Local)
	store := memory.NewStateStore()
	tracker, _ := newTestTracker(t, store, func() time.Time { return day1 })

	if _, err := tracker.SelectCategory(ctx, "self-reflection"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := tracker.SubmitAnswer(ctx, "Content"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	day2 := day1.AddDate(0, 0, 1)
	reloaded, _ := newTestTracker(t, store, func() time.Time { return day2 })
	snapshot := reloaded.Snapshot()
	if snapshot.HasAnsweredToday {
		t.Fatalf("expected unanswered state on a new day")
	}
	if snapshot.CurrentAnswerText != "" {
		t.Fatalf("expected empty answer text, got %q", snapshot.CurrentAnswerText)
	}
	if reloaded.HasAnsweredCategory("self-reflection") {
		t.Fatalf("expected per-category set reset on a new day")
	}

	// History is permanent even though the daily flags reset.
	if !reloaded.HasAnsweredOn(day1) {
		t.Fatalf("expected yesterday kept in answered dates")
	}
	if reloaded.HasAnsweredOn(day2) {
		t.Fatalf("did not expect today in answered dates yet")
	}

	// The stale per-category set is also cleared durably.
	persisted, _ := store.Load(ctx)
	if len(persisted.AnsweredCategoriesToday) != 0 {
		t.Fatalf("expected persisted categories cleared, got %v", persisted.AnsweredCategoriesToday)
	}
}

func TestDayRolloverDetectedLazily(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2026, 5, 2, 23, 30, 0, 0, time.Local)
	tracker, _ := newTestTracker(t, memory.NewStateStore(), func() time.Time { return current })

	if _, err := tracker.SelectCategory(ctx, "gratitude"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := tracker.SubmitAnswer(ctx, "my friends"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !tracker.HasAnsweredToday() {
		t.Fatalf("expected answered before midnight")
	}

	// Cross midnight without any reload; the next query must observe the
	// rollover on its own.
	current = current.Add(time.Hour)
	if tracker.HasAnsweredToday() {
		t.Fatalf("expected unanswered after midnight")
	}
	if tracker.HasAnsweredCategory("gratitude") {
		t.Fatalf("expected category flag reset after midnight")
	}
	if tracker.Snapshot().CurrentAnswerText != "" {
		t.Fatalf("expected answer text reset after midnight")
	}
}

func TestQueriesAreIdempotent(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.Local)
	tracker, _ := newTestTracker(t, memory.NewStateStore(), func() time.Time { return now })

	_, _ = tracker.SelectCategory(ctx, "self-reflection")
	_, _ = tracker.SubmitAnswer(ctx, "Content")

	for i := 0; i < 3; i++ {
		if !tracker.HasAnsweredOn(now) {
			t.Fatalf("HasAnsweredOn changed between calls")
		}
		if !tracker.HasAnsweredCategory("self-reflection") {
			t.Fatalf("HasAnsweredCategory changed between calls")
		}
	}
}

func TestSelectUnknownCategory(t *testing.T) {
	tracker, _ := newTestTracker(t, memory.NewStateStore(), time.Now)

	if _, err := tracker.SelectCategory(context.Background(), "nope"); err != domain.ErrCategoryNotFound {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTestTracker(t, memory.NewStateStore(), time.Now)

	ch, cancel := tracker.Subscribe()
	defer cancel()

	<-ch // initial snapshot

	if _, err := tracker.SelectCategory(ctx, "gratitude"); err != nil {
		t.Fatalf("select: %v", err)
	}
	update := <-ch
	if update.SelectedCategoryID != "gratitude" {
		t.Fatalf("expected selection update, got %+v", update)
	}

	if _, err := tracker.SubmitAnswer(ctx, "coffee"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	update = <-ch
	if !update.HasAnsweredToday || update.CurrentAnswerText != "coffee" {
		t.Fatalf("expected answered update, got %+v", update)
	}
}

func TestRejectsCategoryWithoutQuestions(t *testing.T) {
	catalog := domain.Catalog{
		ID: "broken",
		Categories: []domain.Category{
			{ID: "empty", Name: "Empty"},
		},
	}
	repo := memory.NewCatalogRepository(memory.NewStaticCatalogLoader(catalog), time.Minute)
	_, err := app.NewTracker(context.Background(), memory.NewStateStore(), repo)
	if err == nil {
		t.Fatalf("expected error for category without questions")
	}
}

func newTestTracker(t *testing.T, store app.StateStore, now func() time.Time) (*app.Tracker, domain.Catalog) {
	t.Helper()
	catalog := testCatalog()
	repo := memory.NewCatalogRepository(memory.NewStaticCatalogLoader(catalog), 5*time.Minute)
	tracker, err := app.NewTrackerWithClock(context.Background(), store, repo, now)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	return tracker, catalog
}

func testCatalog() domain.Catalog {
	return domain.Catalog{
		ID: "default",
		Categories: []domain.Category{
			{
				ID:   "self-reflection",
				Name: "Self-Reflection",
				Icon: "mirror",
				Questions: []domain.Question{
					{ID: "sr-1", Prompt: "What did you learn about yourself today?"},
					{ID: "sr-2", Prompt: "What's a habit you'd like to develop?"},
					{ID: "sr-3", Prompt: "When did you last step outside your comfort zone?"},
				},
			},
			{
				ID:   "gratitude",
				Name: "Gratitude",
				Icon: "heart",
				Questions: []domain.Question{
					{ID: "gr-1", Prompt: "What are you grateful for today?"},
					{ID: "gr-2", Prompt: "Who made your day a little better?"},
				},
			},
			{
				ID:   "mood",
				Name: "Mood Check-in",
				Icon: "sun",
				Questions: []domain.Question{
					{ID: "md-1", Prompt: "How was your overall mood today?", Choices: []string{"Rough", "Okay", "Good", "Great"}},
				},
			},
		},
	}
}
