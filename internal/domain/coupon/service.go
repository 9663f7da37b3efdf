package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Service manages coupon definitions.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a coupon Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create validates c and stores it. ErrAlreadyExists is returned when the
// code is taken.
func (s *Service) Create(ctx context.Context, c Coupon) (*Coupon, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.ExpiresAt = c.ExpiresAt.UTC()
	c.CreatedAt = s.now().UTC()

	if err := s.repo.Create(ctx, &c); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, ErrAlreadyExists
		}
		return nil, errors.Wrap(err, "create coupon")
	}
	return &c, nil
}
