package cvs

import (
	"context"
	"errors"
	"sort"
	"time"

	"cvgenius-backend/internal/shared/telemetry"
)

// Gateway routes persistence through a primary repo with an in-memory
// fallback. The mode is fixed at startup: without a primary every operation
// goes straight to memory. With a primary, writes that fail against it land
// in memory instead and still report success, so an upload never dies on a
// database hiccup; reads consult the primary first and then memory.
type Gateway struct {
	primary CVRepo
	memory  *MemoryRepo
}

// NewGateway constructs a Gateway. primary may be nil for memory-only mode.
func NewGateway(primary CVRepo, memory *MemoryRepo) *Gateway {
	if memory == nil {
		memory = NewMemoryRepo()
	}
	return &Gateway{primary: primary, memory: memory}
}

// Mode reports which store the gateway was started against.
func (g *Gateway) Mode() string {
	if g.primary == nil {
		return "memory"
	}
	return "postgres"
}

// Create writes to the primary, falling back to memory on failure.
func (g *Gateway) Create(ctx context.Context, cv CV) error {
	if g.primary == nil {
		return g.memory.Create(ctx, cv)
	}
	if err := g.primary.Create(ctx, cv); err != nil {
		telemetry.Error("primary create failed, using memory fallback", map[string]any{
			"urlId": cv.URLId,
			"error": err.Error(),
		})
		return g.memory.Create(ctx, cv)
	}
	return nil
}

// GetByURLId reads from the primary, then memory.
func (g *Gateway) GetByURLId(ctx context.Context, urlID string) (CV, error) {
	if g.primary == nil {
		return g.memory.GetByURLId(ctx, urlID)
	}
	cv, err := g.primary.GetByURLId(ctx, urlID)
	if err == nil {
		return cv, nil
	}
	if !errors.Is(err, ErrNotFound) {
		telemetry.Warn("primary read failed, checking memory fallback", map[string]any{
			"urlId": urlID,
			"error": err.Error(),
		})
	}
	return g.memory.GetByURLId(ctx, urlID)
}

// GetByCustomURLName reads from the primary, then memory.
func (g *Gateway) GetByCustomURLName(ctx context.Context, name string) (CV, error) {
	if g.primary == nil {
		return g.memory.GetByCustomURLName(ctx, name)
	}
	cv, err := g.primary.GetByCustomURLName(ctx, name)
	if err == nil {
		return cv, nil
	}
	if !errors.Is(err, ErrNotFound) {
		telemetry.Warn("primary read failed, checking memory fallback", map[string]any{
			"customUrlName": name,
			"error":         err.Error(),
		})
	}
	return g.memory.GetByCustomURLName(ctx, name)
}

// Update applies to whichever store holds the record.
func (g *Gateway) Update(ctx context.Context, cv CV) error {
	if g.primary == nil {
		return g.memory.Update(ctx, cv)
	}
	err := g.primary.Update(ctx, cv)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return g.memory.Update(ctx, cv)
	}
	telemetry.Error("primary update failed, using memory fallback", map[string]any{
		"urlId": cv.URLId,
		"error": err.Error(),
	})
	if memErr := g.memory.Update(ctx, cv); memErr == nil {
		return nil
	}
	return g.memory.Create(ctx, cv)
}

// IncrementView applies to whichever store holds the record.
func (g *Gateway) IncrementView(ctx context.Context, urlID string, at time.Time) error {
	if g.primary == nil {
		return g.memory.IncrementView(ctx, urlID, at)
	}
	err := g.primary.IncrementView(ctx, urlID, at)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		telemetry.Error("primary view update failed, using memory fallback", map[string]any{
			"urlId": urlID,
			"error": err.Error(),
		})
	}
	return g.memory.IncrementView(ctx, urlID, at)
}

// RecordSectionInteraction applies to whichever store holds the record.
func (g *Gateway) RecordSectionInteraction(ctx context.Context, urlID, sectionID, sectionTitle string, at time.Time) error {
	if g.primary == nil {
		return g.memory.RecordSectionInteraction(ctx, urlID, sectionID, sectionTitle, at)
	}
	err := g.primary.RecordSectionInteraction(ctx, urlID, sectionID, sectionTitle, at)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		telemetry.Error("primary interaction update failed, using memory fallback", map[string]any{
			"urlId": urlID,
			"error": err.Error(),
		})
	}
	return g.memory.RecordSectionInteraction(ctx, urlID, sectionID, sectionTitle, at)
}

// ListByUser merges primary results with records that only exist in memory.
func (g *Gateway) ListByUser(ctx context.Context, userID string, limit, offset int) ([]CV, error) {
	if g.primary == nil {
		return g.memory.ListByUser(ctx, userID, limit, offset)
	}
	primary, err := g.primary.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		telemetry.Warn("primary list failed, using memory fallback", map[string]any{
			"userId": userID,
			"error":  err.Error(),
		})
		return g.memory.ListByUser(ctx, userID, limit, offset)
	}

	fallback, memErr := g.memory.ListByUser(ctx, userID, 0, 0)
	if memErr != nil || len(fallback) == 0 {
		return primary, nil
	}
	seen := make(map[string]struct{}, len(primary))
	for _, cv := range primary {
		seen[cv.URLId] = struct{}{}
	}
	merged := primary
	for _, cv := range fallback {
		if _, ok := seen[cv.URLId]; !ok {
			merged = append(merged, cv)
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].UploadDate.After(merged[j].UploadDate)
	})
	return merged, nil
}

// CountByUser counts across both stores, without double-counting.
func (g *Gateway) CountByUser(ctx context.Context, userID string) (int, error) {
	if g.primary == nil {
		return g.memory.CountByUser(ctx, userID)
	}
	count, err := g.primary.CountByUser(ctx, userID)
	if err != nil {
		telemetry.Warn("primary count failed, using memory fallback", map[string]any{
			"userId": userID,
			"error":  err.Error(),
		})
		return g.memory.CountByUser(ctx, userID)
	}
	extra, memErr := g.memory.CountByUser(ctx, userID)
	if memErr == nil && extra > 0 {
		primaryList, listErr := g.primary.ListByUser(ctx, userID, 0, 0)
		if listErr == nil {
			seen := make(map[string]struct{}, len(primaryList))
			for _, cv := range primaryList {
				seen[cv.URLId] = struct{}{}
			}
			memList, _ := g.memory.ListByUser(ctx, userID, 0, 0)
			for _, cv := range memList {
				if _, ok := seen[cv.URLId]; !ok {
					count++
				}
			}
			return count, nil
		}
		return count + extra, nil
	}
	return count, nil
}

// Delete removes the record from both stores.
func (g *Gateway) Delete(ctx context.Context, urlID string) error {
	if g.primary == nil {
		return g.memory.Delete(ctx, urlID)
	}
	err := g.primary.Delete(ctx, urlID)
	memErr := g.memory.Delete(ctx, urlID)
	if err == nil || memErr == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) && errors.Is(memErr, ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// ClaimGuest reassigns guest-owned CVs in both stores. The primary's count
// wins when it is reachable; memory-side moves are additive.
func (g *Gateway) ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (int, error) {
	memMoved, memErr := g.memory.ClaimGuest(ctx, guestUserID, authedUserID)
	if g.primary == nil {
		return memMoved, memErr
	}
	claimer, ok := g.primary.(interface {
		ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (int, error)
	})
	if !ok {
		return memMoved, memErr
	}
	moved, err := claimer.ClaimGuest(ctx, guestUserID, authedUserID)
	if err != nil {
		telemetry.Error("cv claim fallback to memory", map[string]any{"error": err.Error()})
		return memMoved, memErr
	}
	return moved + memMoved, nil
}

var _ CVRepo = (*Gateway)(nil)
