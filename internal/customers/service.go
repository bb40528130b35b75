package customers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"docchaser/internal/shared/telemetry"
)

const (
	minSearchLen = 2
	maxSearch    = 10
)

// Service manages the customer directory.
type Service struct {
	Repo Repo
	Now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo, Now: time.Now}
}

// CreateInput is the data for a new customer.
type CreateInput struct {
	Name    string
	Email   string
	Phone   string
	Company string
	Notes   string
}

func (in CreateInput) customer(now time.Time) Customer {
	return Customer{
		ID:        uuid.NewString(),
		Email:     strings.TrimSpace(in.Email),
		Name:      strings.TrimSpace(in.Name),
		Phone:     strings.TrimSpace(in.Phone),
		Company:   strings.TrimSpace(in.Company),
		Notes:     strings.TrimSpace(in.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Create adds a customer. On a duplicate email it returns the existing
// customer together with ErrDuplicateEmail.
func (s *Service) Create(ctx context.Context, in CreateInput) (Customer, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Email) == "" {
		return Customer{}, fmt.Errorf("%w: name and email are required", ErrInvalidInput)
	}
	if existing, err := s.Repo.GetByEmail(ctx, in.Email); err == nil {
		return existing, ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return Customer{}, err
	}

	c := in.customer(s.now())
	if err := s.Repo.Create(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			existing, getErr := s.Repo.GetByEmail(ctx, in.Email)
			if getErr != nil {
				return Customer{}, err
			}
			return existing, err
		}
		return Customer{}, err
	}
	telemetry.Info("customers.created", map[string]any{"customer_id": c.ID})
	return c, nil
}

// FindOrCreate returns the id of the customer with email, creating one from
// the case contact when none exists.
func (s *Service) FindOrCreate(ctx context.Context, name, email, phone string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(name) == "" {
		name = email
	}
	c, err := s.Repo.Upsert(ctx, CreateInput{Name: name, Email: email, Phone: phone}.customer(s.now()))
	if err != nil {
		return "", fmt.Errorf("upsert customer: %w", err)
	}
	return c.ID, nil
}

// Upsert stores a fully specified customer unless its email exists.
func (s *Service) Upsert(ctx context.Context, in CreateInput) (Customer, error) {
	return s.Repo.Upsert(ctx, in.customer(s.now()))
}

// Get returns one customer.
func (s *Service) Get(ctx context.Context, id string) (Customer, error) {
	return s.Repo.GetByID(ctx, id)
}

// List returns all customers, newest first.
func (s *Service) List(ctx context.Context) ([]Customer, error) {
	return s.Repo.List(ctx)
}

// Search matches q case-insensitively against name, email and company. Queries
// shorter than two characters return nothing. At most ten results are
// returned, ordered by name.
func (s *Service) Search(ctx context.Context, q string) ([]Customer, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	if len([]rune(q)) < minSearchLen {
		return []Customer{}, nil
	}
	all, err := s.Repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []Customer{}
	for _, c := range all {
		if strings.Contains(strings.ToLower(c.Name), q) ||
			strings.Contains(strings.ToLower(c.Email), q) ||
			strings.Contains(strings.ToLower(c.Company), q) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	if len(out) > maxSearch {
		out = out[:maxSearch]
	}
	return out, nil
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}
