package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"daily-reflection-service/internal/domain"
)

// StateStore abstracts how tracker state is persisted (in-memory, Redis, etc).
type StateStore interface {
	Load(ctx context.Context) (domain.PersistedState, error)
	Save(ctx context.Context, state domain.PersistedState) error
}

// CatalogRepository loads catalog content (from cache/backing store).
type CatalogRepository interface {
	GetCatalog(ctx context.Context) (domain.Catalog, error)
}

// Tracker holds the process-wide daily reflection state: the active
// category, the day's answer, and the rolling answered-days history.
// It is loaded once at startup and persisted on every mutation.
type Tracker struct {
	store    StateStore
	catalogs CatalogRepository
	now      func() time.Time

	mu                 sync.RWMutex
	catalog            domain.Catalog
	selectedCategoryID string
	answerText         string
	answeredToday      bool
	answeredDates      map[string]struct{}
	answeredCategories map[string]struct{}
	lastAnsweredAt     time.Time
	// loadedDay is the calendar day the per-day fields refer to. Day
	// rollover is detected lazily by comparing it against DayKey(now)
	// on every query or mutation; no timer is involved.
	loadedDay   string
	subscribers map[chan domain.StateSnapshot]struct{}
}

// NewTracker loads persisted state and restores today's answer status.
func NewTracker(ctx context.Context, store StateStore, catalogs CatalogRepository) (*Tracker, error) {
	return NewTrackerWithClock(ctx, store, catalogs, time.Now)
}

// NewTrackerWithClock allows deterministic timestamps in tests.
func NewTrackerWithClock(ctx context.Context, store StateStore, catalogs CatalogRepository, now func() time.Time) (*Tracker, error) {
	catalog, err := catalogs.GetCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	t := &Tracker{
		store:              store,
		catalogs:           catalogs,
		now:                now,
		catalog:            catalog,
		answeredDates:      make(map[string]struct{}),
		answeredCategories: make(map[string]struct{}),
		subscribers:        make(map[chan domain.StateSnapshot]struct{}),
	}
	if err := t.restore(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// restore replays persisted state against a single "now" instant so the
// answered-today flag and the per-category set never disagree about which
// day is current.
func (t *Tracker) restore(ctx context.Context) error {
	persisted, err := t.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	instant := t.now()
	today := domain.DayKey(instant)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.loadedDay = today
	t.lastAnsweredAt = persisted.LastAnsweredAt

	if persisted.SelectedCategoryIndex != nil {
		// Out-of-range indexes from older catalogs degrade to "no selection".
		if cat, ok := t.catalog.ByIndex(*persisted.SelectedCategoryIndex); ok {
			t.selectedCategoryID = cat.ID
		}
	}

	for _, day := range persisted.AnsweredDates {
		if _, err := time.ParseInLocation(domain.DayKeyLayout, day, time.Local); err != nil {
			continue
		}
		t.answeredDates[day] = struct{}{}
	}

	answeredSameDay := !persisted.LastAnsweredAt.IsZero() && domain.DayKey(persisted.LastAnsweredAt) == today
	if answeredSameDay {
		t.answeredToday = true
		t.answerText = persisted.LastAnswer
		for _, id := range persisted.AnsweredCategoriesToday {
			if _, ok := t.catalog.ByID(id); !ok {
				continue
			}
			t.answeredCategories[id] = struct{}{}
		}
		return nil
	}

	// The persisted per-category set belongs to a previous day; clear it
	// durably so a later load does not resurrect it.
	if len(persisted.AnsweredCategoriesToday) > 0 {
		persisted.AnsweredCategoriesToday = nil
		if err := t.store.Save(ctx, persisted); err != nil {
			return fmt.Errorf("clear stale categories: %w", err)
		}
	}
	return nil
}

// Catalog returns the fixed category catalog.
func (t *Tracker) Catalog() domain.Catalog {
	return t.catalog
}

// SelectCategory marks the category active, persists its catalog position,
// and recomputes the question of the day.
func (t *Tracker) SelectCategory(ctx context.Context, categoryID string) (domain.StateSnapshot, error) {
	if _, ok := t.catalog.ByID(categoryID); !ok {
		return domain.StateSnapshot{}, domain.ErrCategoryNotFound
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.refreshDayLocked()
	t.selectedCategoryID = categoryID
	if err := t.persistLocked(ctx); err != nil {
		return domain.StateSnapshot{}, err
	}
	return t.broadcastLocked(), nil
}

// SubmitAnswer records an answer for the active category's question of the
// day. Emptiness of the text is the caller's precondition; the tracker
// stores whatever it is given.
func (t *Tracker) SubmitAnswer(ctx context.Context, text string) (domain.StateSnapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.refreshDayLocked()
	if t.selectedCategoryID == "" {
		return domain.StateSnapshot{}, domain.ErrNoCategorySelected
	}

	instant := t.now()
	t.answerText = text
	t.answeredToday = true
	t.answeredDates[domain.DayKey(instant)] = struct{}{}
	t.answeredCategories[t.selectedCategoryID] = struct{}{}
	t.lastAnsweredAt = instant

	if err := t.persistLocked(ctx); err != nil {
		return domain.StateSnapshot{}, err
	}
	return t.broadcastLocked(), nil
}

// HasAnsweredToday reports whether an answer was submitted on the current
// calendar day.
func (t *Tracker) HasAnsweredToday() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refreshDayLocked()
	return t.answeredToday
}

// HasAnsweredOn reports whether any answer was ever submitted on the
// calendar day of date.
func (t *Tracker) HasAnsweredOn(date time.Time) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.answeredDates[domain.DayKey(date)]
	return ok
}

// HasAnsweredCategory reports whether the category was answered today.
func (t *Tracker) HasAnsweredCategory(categoryID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refreshDayLocked()
	_, ok := t.answeredCategories[categoryID]
	return ok
}

// Snapshot returns the current UI-observable state.
func (t *Tracker) Snapshot() domain.StateSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refreshDayLocked()
	return t.snapshotLocked()
}

// Subscribe returns a channel that receives state updates. The caller must
// invoke the returned cancel function to avoid leaks.
func (t *Tracker) Subscribe() (<-chan domain.StateSnapshot, func()) {
	ch := make(chan domain.StateSnapshot, 8)

	t.mu.Lock()
	t.refreshDayLocked()
	t.subscribers[ch] = struct{}{}
	initial := t.snapshotLocked()
	t.mu.Unlock()

	ch <- initial

	cancel := func() {
		t.mu.Lock()
		if _, ok := t.subscribers[ch]; ok {
			delete(t.subscribers, ch)
			close(ch)
		}
		t.mu.Unlock()
	}
	return ch, cancel
}

// refreshDayLocked resets per-day state the moment the wall-clock day has
// advanced past the day it was recorded for.
func (t *Tracker) refreshDayLocked() {
	today := domain.DayKey(t.now())
	if today == t.loadedDay {
		return
	}
	t.loadedDay = today
	t.answeredToday = false
	t.answerText = ""
	t.answeredCategories = make(map[string]struct{})
}

func (t *Tracker) persistLocked(ctx context.Context) error {
	state := domain.PersistedState{
		LastAnsweredAt: t.lastAnsweredAt,
		LastAnswer:     t.answerText,
		AnsweredDates:  sortedKeys(t.answeredDates),
	}
	if idx, ok := t.catalog.IndexOf(t.selectedCategoryID); ok {
		state.SelectedCategoryIndex = &idx
	}
	if t.answeredToday {
		state.AnsweredCategoriesToday = sortedKeys(t.answeredCategories)
	}
	if err := t.store.Save(ctx, state); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (t *Tracker) broadcastLocked() domain.StateSnapshot {
	snapshot := t.snapshotLocked()
	for ch := range t.subscribers {
		select {
		case ch <- snapshot:
		default:
			// Drop the stale update so a slow consumer never blocks a mutation.
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
	return snapshot
}

func (t *Tracker) snapshotLocked() domain.StateSnapshot {
	snapshot := domain.StateSnapshot{
		SelectedCategoryID: t.selectedCategoryID,
		CurrentAnswerText:  t.answerText,
		HasAnsweredToday:   t.answeredToday,
		AnsweredDates:      sortedKeys(t.answeredDates),
		AnsweredCategories: sortedKeys(t.answeredCategories),
		UpdatedAt:          t.now(),
	}
	if cat, ok := t.catalog.ByID(t.selectedCategoryID); ok {
		snapshot.Question = cat.QuestionOfDay(t.now())
	}
	return snapshot
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
