package cvs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of CVRepo. It backs both
// standalone deployments without Postgres and the per-operation fallback of
// the storage gateway.
type MemoryRepo struct {
	mu     sync.RWMutex
	byURL  map[string]CV     // urlId -> CV
	byName map[string]string // customUrlName -> urlId
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byURL:  make(map[string]CV),
		byName: make(map[string]string),
	}
}

// Create stores a CV keyed by its urlId.
func (r *MemoryRepo) Create(ctx context.Context, cv CV) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byURL[cv.URLId] = cv
	if cv.CustomURLName != "" {
		r.byName[cv.CustomURLName] = cv.URLId
	}
	return nil
}

// GetByURLId returns a CV by its public urlId.
func (r *MemoryRepo) GetByURLId(ctx context.Context, urlID string) (CV, error) {
	if err := ctx.Err(); err != nil {
		return CV{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	cv, ok := r.byURL[urlID]
	if !ok {
		return CV{}, ErrNotFound
	}
	return cv, nil
}

// GetByCustomURLName returns a CV by its custom URL name.
func (r *MemoryRepo) GetByCustomURLName(ctx context.Context, name string) (CV, error) {
	if err := ctx.Err(); err != nil {
		return CV{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if urlID, ok := r.byName[name]; ok {
		if cv, ok := r.byURL[urlID]; ok {
			return cv, nil
		}
	}
	// The index can miss entries written before the name was set.
	for _, cv := range r.byURL {
		if cv.CustomURLName == name {
			return cv, nil
		}
	}
	return CV{}, ErrNotFound
}

// Update overwrites a stored CV, keeping the name index in sync.
func (r *MemoryRepo) Update(ctx context.Context, cv CV) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.byURL[cv.URLId]
	if !ok {
		return ErrNotFound
	}
	if prev.CustomURLName != "" && prev.CustomURLName != cv.CustomURLName {
		delete(r.byName, prev.CustomURLName)
	}
	r.byURL[cv.URLId] = cv
	if cv.CustomURLName != "" {
		r.byName[cv.CustomURLName] = cv.URLId
	}
	return nil
}

// IncrementView bumps the view counter and last-viewed timestamp.
func (r *MemoryRepo) IncrementView(ctx context.Context, urlID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cv, ok := r.byURL[urlID]
	if !ok {
		return ErrNotFound
	}
	cv.Views++
	cv.LastViewed = &at
	r.byURL[urlID] = cv
	return nil
}

// RecordSectionInteraction increments the click counter for one section,
// creating the entry on first click.
func (r *MemoryRepo) RecordSectionInteraction(ctx context.Context, urlID, sectionID, sectionTitle string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cv, ok := r.byURL[urlID]
	if !ok {
		return ErrNotFound
	}
	// Copies handed out by the getters share this backing array; clone it so
	// the increment below never writes into a slice a reader still holds.
	interactions := make([]SectionInteraction, len(cv.SectionInteractions))
	copy(interactions, cv.SectionInteractions)
	cv.SectionInteractions = interactions
	found := false
	for i := range cv.SectionInteractions {
		if cv.SectionInteractions[i].SectionID == sectionID {
			cv.SectionInteractions[i].Clicks++
			cv.SectionInteractions[i].LastClicked = at
			found = true
			break
		}
	}
	if !found {
		cv.SectionInteractions = append(cv.SectionInteractions, SectionInteraction{
			SectionID:    sectionID,
			SectionTitle: sectionTitle,
			Clicks:       1,
			LastClicked:  at,
		})
	}
	r.byURL[urlID] = cv
	return nil
}

// ListByUser returns a user's CVs, newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]CV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	r.mu.RLock()
	var out []CV
	for _, cv := range r.byURL {
		if cv.UserID == userID {
			out = append(out, cv)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadDate.After(out[j].UploadDate)
	})

	if offset >= len(out) {
		return []CV{}, nil
	}
	end := len(out)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

// CountByUser returns the number of CVs a user owns.
func (r *MemoryRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, cv := range r.byURL {
		if cv.UserID == userID {
			count++
		}
	}
	return count, nil
}

// ClaimGuest reassigns every CV owned by a guest identity to an
// authenticated user, returning how many moved.
func (r *MemoryRepo) ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	moved := 0
	for urlID, cv := range r.byURL {
		if cv.UserID == guestUserID {
			cv.UserID = authedUserID
			r.byURL[urlID] = cv
			moved++
		}
	}
	return moved, nil
}

// Delete removes a CV and its name index entry.
func (r *MemoryRepo) Delete(ctx context.Context, urlID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cv, ok := r.byURL[urlID]
	if !ok {
		return ErrNotFound
	}
	if cv.CustomURLName != "" {
		delete(r.byName, cv.CustomURLName)
	}
	delete(r.byURL, urlID)
	return nil
}

var _ CVRepo = (*MemoryRepo)(nil)
