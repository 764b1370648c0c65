package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/evanschultz/sprinter/internal/domain"
)

// ImportResult reports the outcome of one task import.
type ImportResult struct {
	ListID   string
	Imported []domain.Task
	// Skipped holds namespaced ids already present in the sprint.
	Skipped []string
}

// ImportTasks fetches records for listID from the configured task source and
// appends them to the backlog. The import is all-or-nothing: any transport or
// record failure leaves the sprint unchanged.
func (s *Service) ImportTasks(ctx context.Context, listID string) (ImportResult, error) {
	listID = strings.TrimSpace(listID)
	if listID == "" {
		return ImportResult{}, fmt.Errorf("%w: list id is required", ErrValidation)
	}
	if s.source == nil {
		return ImportResult{}, fmt.Errorf("%w: no task source configured", ErrImport)
	}

	// Fetch runs outside the service lock.
	records, err := s.source.FetchTasks(ctx, listID)
	if err != nil {
		s.recorder.ObserveMutation("import", err)
		s.log.Warn("task import fetch failed", "list_id", listID, "err", err)
		return ImportResult{}, fmt.Errorf("%w: %w", ErrImport, err)
	}

	result, err := mutate(ctx, s, "import", func(session *Session, now time.Time) (ImportResult, error) {
		return s.importRecords(session, listID, records, now)
	})
	if err != nil {
		return ImportResult{}, err
	}
	s.log.Info("tasks imported", "list_id", listID, "imported", len(result.Imported), "skipped", len(result.Skipped))
	return result, nil
}

func (s *Service) importRecords(session *Session, listID string, records []ImportRecord, now time.Time) (ImportResult, error) {
	result := ImportResult{ListID: listID, Imported: make([]domain.Task, 0, len(records))}
	batch := map[string]struct{}{}
	for i, rec := range records {
		externalID := strings.TrimSpace(rec.ID)
		if externalID == "" {
			return ImportResult{}, fmt.Errorf("%w: records[%d].id is required", ErrImport, i)
		}
		id := s.importPrefix + externalID
		if _, dup := batch[id]; dup || session.store.Has(id) {
			result.Skipped = append(result.Skipped, id)
			continue
		}
		priority, err := domain.ParsePriority(rec.Priority)
		if err != nil {
			return ImportResult{}, fmt.Errorf("%w: records[%d]: %w", ErrImport, i, err)
		}
		task, err := domain.NewTask(domain.TaskInput{
			ID:          id,
			Title:       rec.Title,
			Description: rec.Description,
			StoryPoints: rec.StoryPoints,
			Priority:    priority,
		}, s.bounds, now)
		if err != nil {
			return ImportResult{}, fmt.Errorf("%w: records[%d]: %w", ErrImport, i, err)
		}
		batch[id] = struct{}{}
		result.Imported = append(result.Imported, task)
	}
	if err := session.store.Insert(result.Imported...); err != nil {
		return ImportResult{}, fmt.Errorf("%w: %w", ErrImport, err)
	}
	return result, nil
}
