package documents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"docchaser/internal/shared/telemetry"
)

// Service segments case documents into items and tracks their status.
type Service struct {
	Repo   Repo
	Parser Parser
	Now    func() time.Time
}

// NewService constructs a Service. A nil parser uses SimpleParser.
func NewService(repo Repo, parser Parser) *Service {
	if parser == nil {
		parser = SimpleParser{}
	}
	return &Service{Repo: repo, Parser: parser, Now: time.Now}
}

// TrackDocuments parses the documents text of a case and stores one item per
// document.
func (s *Service) TrackDocuments(ctx context.Context, caseID, text string) error {
	parsed := s.Parser.Parse(ctx, text)
	now := s.now()
	items := make([]Item, 0, len(parsed))
	for i, p := range parsed {
		order := i
		if p.Order != nil {
			order = *p.Order
		}
		items = append(items, Item{
			ID:          uuid.NewString(),
			CaseID:      caseID,
			Name:        p.Name,
			Description: p.Description,
			Status:      StatusPending,
			Order:       order,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	if err := s.Repo.CreateItems(ctx, items); err != nil {
		return fmt.Errorf("store document items: %w", err)
	}
	telemetry.Info("documents.tracked", map[string]any{"chaser_id": caseID, "items": len(items)})
	return nil
}

// ForgetCase drops the items of a deleted case from repositories that do not
// cascade on their own.
func (s *Service) ForgetCase(ctx context.Context, caseID string) {
	if mem, ok := s.Repo.(*MemoryRepo); ok {
		mem.DeleteByCase(caseID)
	}
}

// List returns the items of a case.
func (s *Service) List(ctx context.Context, caseID string) ([]Item, error) {
	return s.Repo.ListByCase(ctx, caseID)
}

// Update changes the status and/or notes of one item.
func (s *Service) Update(ctx context.Context, caseID, itemID string, upd Update) (Item, error) {
	if upd.Status == nil && upd.Notes == nil {
		return Item{}, fmt.Errorf("%w: status or notes is required", ErrInvalidInput)
	}
	if upd.Status != nil {
		status := strings.ToLower(strings.TrimSpace(*upd.Status))
		if !validStatus(status) {
			return Item{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *upd.Status)
		}
		upd.Status = &status
	}
	upd.At = s.now()
	return s.Repo.UpdateItem(ctx, caseID, itemID, upd)
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}
