package account

import (
	"context"
	"errors"
	"strings"

	"cvgenius-backend/internal/cvs"
)

type Service struct {
	Repo cvs.CVRepo
}

type ClaimResult struct {
	MigratedCVs int `json:"migratedCVs"`
}

func NewService(repo cvs.CVRepo) *Service {
	return &Service{Repo: repo}
}

type guestClaimer interface {
	ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (int, error)
}

// ClaimGuest moves CVs uploaded under a guest identity to the signed-in user.
func (s *Service) ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (ClaimResult, error) {
	if strings.TrimSpace(guestUserID) == "" || strings.TrimSpace(authedUserID) == "" {
		return ClaimResult{}, errors.New("guestUserID and authedUserID are required")
	}
	claimer, ok := s.Repo.(guestClaimer)
	if !ok {
		return ClaimResult{}, errors.New("cv repo does not support claim")
	}
	moved, err := claimer.ClaimGuest(ctx, guestUserID, authedUserID)
	if err != nil {
		return ClaimResult{}, err
	}
	return ClaimResult{MigratedCVs: moved}, nil
}
