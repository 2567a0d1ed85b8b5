// Package analytics records and reports page views and section clicks on
// published CVs. Tracking endpoints are open, reporting is gated on the
// owner's plan.
package analytics

import (
	"context"
	"errors"
	"time"

	"cvgenius-backend/internal/cvs"
)

// ErrNoAccess is returned when a user's plan does not include analytics.
var ErrNoAccess = errors.New("analytics not included in plan")

// AccessChecker reports whether a user's plan includes analytics.
type AccessChecker interface {
	HasAnalytics(ctx context.Context, userID string) (bool, error)
}

// CVSummary is the per-CV analytics report for an owner.
type CVSummary struct {
	Views               int                      `json:"views"`
	LastViewed          *time.Time               `json:"lastViewed"`
	SectionInteractions []cvs.SectionInteraction `json:"sectionInteractions"`
}

// UserCVSummary is one row of the cross-CV dashboard.
type UserCVSummary struct {
	ID                 string                  `json:"id"`
	Title              string                  `json:"title"`
	Views              int                     `json:"views"`
	InteractionCount   int                     `json:"interactionCount"`
	MostClickedSection *cvs.SectionInteraction `json:"mostClickedSection"`
	LastViewed         *time.Time              `json:"lastViewed"`
}

// Service contains analytics logic on top of the CV store.
type Service struct {
	Repo   cvs.CVRepo
	Access AccessChecker
}

// TrackView bumps a CV's view counter. Unknown CVs are ignored so the public
// tracking endpoint never leaks existence.
func (s *Service) TrackView(ctx context.Context, urlID string) error {
	err := s.Repo.IncrementView(ctx, urlID, time.Now().UTC())
	if errors.Is(err, cvs.ErrNotFound) {
		return nil
	}
	return err
}

// TrackSection records a click on one expandable section.
func (s *Service) TrackSection(ctx context.Context, urlID, sectionID, sectionTitle string) error {
	err := s.Repo.RecordSectionInteraction(ctx, urlID, sectionID, sectionTitle, time.Now().UTC())
	if errors.Is(err, cvs.ErrNotFound) {
		return nil
	}
	return err
}

// CVAnalytics returns the report for one CV owned by the user.
func (s *Service) CVAnalytics(ctx context.Context, userID, urlID string) (CVSummary, error) {
	if err := s.checkAccess(ctx, userID); err != nil {
		return CVSummary{}, err
	}

	cv, err := s.Repo.GetByURLId(ctx, urlID)
	if err != nil {
		return CVSummary{}, err
	}
	if cv.UserID != userID {
		return CVSummary{}, cvs.ErrNotFound
	}

	interactions := cv.SectionInteractions
	if interactions == nil {
		interactions = []cvs.SectionInteraction{}
	}
	return CVSummary{
		Views:               cv.Views,
		LastViewed:          cv.LastViewed,
		SectionInteractions: interactions,
	}, nil
}

// UserAnalytics returns the dashboard rows for all of a user's CVs.
func (s *Service) UserAnalytics(ctx context.Context, userID string) ([]UserCVSummary, error) {
	if err := s.checkAccess(ctx, userID); err != nil {
		return nil, err
	}

	list, err := s.Repo.ListByUser(ctx, userID, 0, 0)
	if err != nil {
		return nil, err
	}

	out := make([]UserCVSummary, 0, len(list))
	for _, cv := range list {
		out = append(out, UserCVSummary{
			ID:                 cv.URLId,
			Title:              cv.FileName,
			Views:              cv.Views,
			InteractionCount:   totalClicks(cv.SectionInteractions),
			MostClickedSection: mostClicked(cv.SectionInteractions),
			LastViewed:         cv.LastViewed,
		})
	}
	return out, nil
}

func (s *Service) checkAccess(ctx context.Context, userID string) error {
	if s.Access == nil {
		return nil
	}
	ok, err := s.Access.HasAnalytics(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoAccess
	}
	return nil
}

func totalClicks(sections []cvs.SectionInteraction) int {
	sum := 0
	for _, s := range sections {
		sum += s.Clicks
	}
	return sum
}

func mostClicked(sections []cvs.SectionInteraction) *cvs.SectionInteraction {
	if len(sections) == 0 {
		return nil
	}
	max := sections[0]
	for _, s := range sections[1:] {
		if s.Clicks > max.Clicks {
			max = s
		}
	}
	return &max
}
