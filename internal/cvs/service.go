package cvs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"cvgenius-backend/internal/extract"
	"cvgenius-backend/internal/llm"
	"cvgenius-backend/internal/shared/metrics"
	"cvgenius-backend/internal/shared/storage/object"
	"cvgenius-backend/internal/shared/telemetry"
)

const (
	extractionMaxTokens = 50000
	htmlMaxTokens       = 64000
	htmlTemperature     = 0.1
)

// PlanService reports per-user entitlements. A negative CV allowance means
// unlimited.
type PlanService interface {
	AllowedCVs(ctx context.Context, userID string) (int, error)
}

// Service contains business logic for CVs: the upload pipeline, page
// generation and the owner-facing management operations.
type Service struct {
	Repo    CVRepo
	Store   object.ObjectStore
	LLM     llm.Client
	Plans   PlanService
	BaseURL string

	htmlGroup    singleflight.Group
	pictureGroup singleflight.Group
}

// Upload runs the full pipeline: extract text, ask the model for structured
// data, parse resiliently, store the original file and persist the record.
// A model reply that cannot be parsed still produces a record, flagged
// degraded, so the client gets a urlId either way.
func (s *Service) Upload(ctx context.Context, userID, fileName, mimeType string, r io.Reader) (CV, error) {
	if strings.TrimSpace(fileName) == "" {
		return CV{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}

	if s.Plans != nil {
		allowed, err := s.Plans.AllowedCVs(ctx, userID)
		if err != nil {
			return CV{}, err
		}
		if allowed >= 0 {
			count, err := s.Repo.CountByUser(ctx, userID)
			if err != nil {
				return CV{}, err
			}
			if count >= allowed {
				return CV{}, ErrQuotaExceeded
			}
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return CV{}, err
	}

	metrics.IncExtractionStarted()
	start := time.Now()

	text, err := extract.ExtractText(ctx, data, mimeType, fileName)
	if err != nil {
		metrics.IncExtractionFailed()
		return CV{}, err
	}

	reply, err := s.LLM.Complete(ctx, llm.CompleteInput{
		Prompt:      llm.BuildExtractionPrompt(text),
		MaxTokens:   extractionMaxTokens,
		Temperature: 0,
	})
	if err != nil {
		metrics.IncExtractionFailed()
		return CV{}, err
	}

	structured, degraded := ParseStructured(reply)
	if degraded {
		metrics.IncParseDegraded()
	}

	storageKey, size, storedMime, err := s.Store.Save(ctx, userID, fileName, bytes.NewReader(data))
	if err != nil {
		metrics.IncExtractionFailed()
		return CV{}, err
	}
	if storedMime == "" {
		storedMime = mimeType
	}

	cv := CV{
		ID:             uuid.NewString(),
		URLId:          uuid.NewString(),
		CustomURLName:  s.customURLName(structured, degraded),
		UserID:         userID,
		FileName:       fileName,
		FileSize:       size,
		FileType:       storedMime,
		StorageKey:     storageKey,
		StructuredData: structured,
		Degraded:       degraded,
		UploadDate:     time.Now().UTC(),
	}

	if err := s.Repo.Create(ctx, cv); err != nil {
		return CV{}, err
	}

	metrics.IncExtractionCompleted()
	metrics.ObserveExtractionDurationMs(float64(time.Since(start).Microseconds()) / 1000.0)
	telemetry.Info("cv processed", map[string]any{
		"urlId":    cv.URLId,
		"userId":   userID,
		"degraded": degraded,
	})
	return cv, nil
}

func (s *Service) customURLName(structured StructuredCV, degraded bool) string {
	name := ""
	if !degraded {
		name = structured.PersonalInfo.Name
	}
	slug := GenerateCustomURLName(name)
	for IsReservedURLName(slug) {
		slug = GenerateCustomURLName("")
	}
	return slug
}

// Get returns a CV owned by the given user.
func (s *Service) Get(ctx context.Context, userID, urlID string) (CV, error) {
	cv, err := s.Repo.GetByURLId(ctx, urlID)
	if err != nil {
		return CV{}, err
	}
	if cv.UserID != userID {
		return CV{}, ErrNotFound
	}
	return cv, nil
}

// Update replaces the structured data of a CV. The detected language is kept
// when the incoming payload leaves it empty, and any generated page is
// invalidated so the next view rebuilds it.
func (s *Service) Update(ctx context.Context, userID, urlID string, structured StructuredCV) (CV, error) {
	cv, err := s.Get(ctx, userID, urlID)
	if err != nil {
		return CV{}, err
	}

	if strings.TrimSpace(structured.Language) == "" {
		structured.Language = cv.StructuredData.Language
	}
	cv.StructuredData = Normalize(structured)
	cv.Degraded = false
	cv.HTML = ""
	cv.PlaceholderPage = ""
	cv.PlaceholderGenerated = nil

	if err := s.Repo.Update(ctx, cv); err != nil {
		return CV{}, err
	}
	return cv, nil
}

// GenerateHTML returns the interactive page for a CV, producing and storing
// it on first call. Concurrent calls for the same CV share one model request.
func (s *Service) GenerateHTML(ctx context.Context, urlID string) (string, error) {
	cv, err := s.Repo.GetByURLId(ctx, urlID)
	if err != nil {
		return "", err
	}
	if cv.HTML != "" {
		return cv.HTML, nil
	}

	html, err, _ := s.htmlGroup.Do("html:"+urlID, func() (any, error) {
		out, genErr := s.generateHTML(ctx, cv)
		if genErr != nil {
			return "", genErr
		}
		return out, nil
	})
	if err != nil {
		s.htmlGroup.Forget("html:" + urlID)
		return "", err
	}
	return html.(string), nil
}

func (s *Service) generateHTML(ctx context.Context, cv CV) (string, error) {
	structuredJSON, err := json.MarshalIndent(cv.StructuredData, "", "  ")
	if err != nil {
		return "", err
	}

	reply, err := s.LLM.Complete(ctx, llm.CompleteInput{
		Prompt:      llm.BuildHTMLPrompt(string(structuredJSON), BaseTemplate()),
		MaxTokens:   htmlMaxTokens,
		Temperature: htmlTemperature,
	})
	if err != nil {
		return "", err
	}

	html := AddTracking(UnwrapResponse(reply), cv.URLId)

	cv.HTML = html
	if err := s.Repo.Update(ctx, cv); err != nil {
		telemetry.Warn("failed to persist generated html", map[string]any{
			"urlId": cv.URLId,
			"error": err.Error(),
		})
	}
	metrics.IncHTMLGenerated()
	return html, nil
}

// View resolves a CV by its public urlId for rendering.
func (s *Service) View(ctx context.Context, urlID string) (CV, error) {
	return s.Repo.GetByURLId(ctx, urlID)
}

// ViewByCustomName resolves a CV by its custom URL name. Reserved names are
// rejected before hitting the store.
func (s *Service) ViewByCustomName(ctx context.Context, name string) (CV, error) {
	if IsReservedURLName(name) {
		return CV{}, ErrNotFound
	}
	return s.Repo.GetByCustomURLName(ctx, name)
}

// PlaceholderPage returns the static landing page for a CV, generating and
// storing it on first use.
func (s *Service) PlaceholderPage(ctx context.Context, urlID string) (string, error) {
	cv, err := s.Repo.GetByURLId(ctx, urlID)
	if err != nil {
		return "", err
	}
	if cv.PlaceholderPage != "" {
		return cv.PlaceholderPage, nil
	}

	page, err := RenderPlaceholderPage(cv, s.BaseURL)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	cv.PlaceholderPage = page
	cv.PlaceholderGenerated = &now
	if err := s.Repo.Update(ctx, cv); err != nil {
		telemetry.Warn("failed to persist placeholder page", map[string]any{
			"urlId": cv.URLId,
			"error": err.Error(),
		})
	}
	return page, nil
}

// List returns a user's CVs, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]CV, error) {
	if userID == "" {
		return nil, errors.New("user id required")
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// Count returns the number of CVs a user owns.
func (s *Service) Count(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, errors.New("user id required")
	}
	return s.Repo.CountByUser(ctx, userID)
}

// Delete removes a CV owned by the given user, along with its stored
// original file. A failed object-store delete is logged but does not keep
// the record alive.
func (s *Service) Delete(ctx context.Context, userID, urlID string) error {
	cv, err := s.Get(ctx, userID, urlID)
	if err != nil {
		return err
	}
	if cv.StorageKey != "" && s.Store != nil {
		if err := s.Store.Delete(ctx, cv.StorageKey); err != nil {
			telemetry.Warn("failed to delete stored file", map[string]any{
				"urlId": urlID,
				"error": err.Error(),
			})
		}
	}
	return s.Repo.Delete(ctx, urlID)
}

// UploadProfilePicture stores a profile picture and links it to the CV.
// Duplicate in-flight uploads of the same file are collapsed into one write;
// the in-flight key is dropped afterwards so a failed upload can be retried.
func (s *Service) UploadProfilePicture(ctx context.Context, userID, urlID, fileName, mimeType string, size int64, r io.Reader) (string, error) {
	cv, err := s.Get(ctx, userID, urlID)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s-%d-%s", fileName, size, mimeType)
	url, err, _ := s.pictureGroup.Do(key, func() (any, error) {
		storageKey, _, _, saveErr := s.Store.Save(ctx, userID, fileName, r)
		if saveErr != nil {
			return "", saveErr
		}
		return strings.TrimRight(s.BaseURL, "/") + "/api/cv/" + cv.URLId + "/picture/" + storageKey, nil
	})
	s.pictureGroup.Forget(key)
	if err != nil {
		return "", err
	}

	cv.ProfilePictureURL = url.(string)
	if err := s.Repo.Update(ctx, cv); err != nil {
		return "", err
	}
	return cv.ProfilePictureURL, nil
}

// ProfilePicture opens the stored profile picture for a CV page. The key
// must match the one recorded on the CV, so stale or foreign keys 404.
func (s *Service) ProfilePicture(ctx context.Context, urlID, storageKey string) (io.ReadCloser, error) {
	cv, err := s.Repo.GetByURLId(ctx, urlID)
	if err != nil {
		return nil, err
	}
	if storageKey == "" || cv.ProfilePictureURL == "" || !strings.HasSuffix(cv.ProfilePictureURL, storageKey) {
		return nil, ErrNotFound
	}
	return s.Store.Open(ctx, storageKey)
}

// Repair re-runs extraction for a CV whose stored data is the parse
// fallback, reading the original upload back from object storage.
func (s *Service) Repair(ctx context.Context, userID, urlID string) (CV, error) {
	cv, err := s.Get(ctx, userID, urlID)
	if err != nil {
		return CV{}, err
	}
	if cv.StorageKey == "" {
		return CV{}, fmt.Errorf("%w: original file not retained", ErrInvalidInput)
	}

	rc, err := s.Store.Open(ctx, cv.StorageKey)
	if err != nil {
		return CV{}, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return CV{}, err
	}

	text, err := extract.ExtractText(ctx, data, cv.FileType, cv.FileName)
	if err != nil {
		return CV{}, err
	}

	reply, err := s.LLM.Complete(ctx, llm.CompleteInput{
		Prompt:      llm.BuildExtractionPrompt(text),
		MaxTokens:   extractionMaxTokens,
		Temperature: 0,
	})
	if err != nil {
		return CV{}, err
	}

	structured, degraded := ParseStructured(reply)
	if degraded {
		metrics.IncParseDegraded()
		return CV{}, fmt.Errorf("repair produced unparseable output")
	}

	cv.StructuredData = structured
	cv.Degraded = false
	cv.HTML = ""
	cv.PlaceholderPage = ""
	cv.PlaceholderGenerated = nil
	if err := s.Repo.Update(ctx, cv); err != nil {
		return CV{}, err
	}
	return cv, nil
}
