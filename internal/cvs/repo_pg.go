package cvs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGRepo implements CVRepo using Postgres. Structured data and section
// interactions are stored as jsonb.
type PGRepo struct {
	DB *sql.DB
}

const cvColumns = `id, url_id, custom_url_name, user_id, file_name, file_size, file_type, file_url, storage_key, structured_data, degraded, html, placeholder_page, placeholder_generated, profile_picture_url, upload_date, views, last_viewed, section_interactions`

// Create inserts a new CV.
func (r *PGRepo) Create(ctx context.Context, cv CV) error {
	const query = `
INSERT INTO cvs (
    id,
    url_id,
    custom_url_name,
    user_id,
    file_name,
    file_size,
    file_type,
    file_url,
    storage_key,
    structured_data,
    degraded,
    html,
    placeholder_page,
    placeholder_generated,
    profile_picture_url,
    upload_date,
    views,
    last_viewed,
    section_interactions
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	structured, err := json.Marshal(cv.StructuredData)
	if err != nil {
		return err
	}
	interactions, err := json.Marshal(cv.SectionInteractions)
	if err != nil {
		return err
	}

	_, err = r.DB.ExecContext(
		ctx,
		query,
		cv.ID,
		cv.URLId,
		nullString(cv.CustomURLName),
		cv.UserID,
		cv.FileName,
		cv.FileSize,
		cv.FileType,
		nullString(cv.FileURL),
		nullString(cv.StorageKey),
		structured,
		cv.Degraded,
		nullString(cv.HTML),
		nullString(cv.PlaceholderPage),
		nullTime(cv.PlaceholderGenerated),
		nullString(cv.ProfilePictureURL),
		cv.UploadDate,
		cv.Views,
		nullTime(cv.LastViewed),
		interactions,
	)
	return err
}

// GetByURLId returns a CV by its public urlId.
func (r *PGRepo) GetByURLId(ctx context.Context, urlID string) (CV, error) {
	const query = `
SELECT ` + cvColumns + `
FROM cvs
WHERE url_id = $1
LIMIT 1`
	return r.getOne(ctx, query, urlID)
}

// GetByCustomURLName returns a CV by its indexed custom URL name.
func (r *PGRepo) GetByCustomURLName(ctx context.Context, name string) (CV, error) {
	const query = `
SELECT ` + cvColumns + `
FROM cvs
WHERE custom_url_name = $1
LIMIT 1`
	return r.getOne(ctx, query, name)
}

func (r *PGRepo) getOne(ctx context.Context, query string, arg any) (CV, error) {
	cv, err := scanCV(r.DB.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CV{}, ErrNotFound
		}
		return CV{}, err
	}
	return cv, nil
}

// Update overwrites the mutable fields of a CV.
func (r *PGRepo) Update(ctx context.Context, cv CV) error {
	const query = `
UPDATE cvs
SET custom_url_name = $1,
    structured_data = $2,
    degraded = $3,
    html = $4,
    placeholder_page = $5,
    placeholder_generated = $6,
    profile_picture_url = $7
WHERE url_id = $8`

	structured, err := json.Marshal(cv.StructuredData)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(
		ctx,
		query,
		nullString(cv.CustomURLName),
		structured,
		cv.Degraded,
		nullString(cv.HTML),
		nullString(cv.PlaceholderPage),
		nullTime(cv.PlaceholderGenerated),
		nullString(cv.ProfilePictureURL),
		cv.URLId,
	)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementView bumps the view counter and last-viewed timestamp.
func (r *PGRepo) IncrementView(ctx context.Context, urlID string, at time.Time) error {
	const query = `
UPDATE cvs
SET views = views + 1, last_viewed = $1
WHERE url_id = $2`
	res, err := r.DB.ExecContext(ctx, query, at, urlID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordSectionInteraction increments the click counter for one section of
// the jsonb interaction list, appending on first click.
func (r *PGRepo) RecordSectionInteraction(ctx context.Context, urlID, sectionID, sectionTitle string, at time.Time) error {
	cv, err := r.GetByURLId(ctx, urlID)
	if err != nil {
		return err
	}

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

	interactions, err := json.Marshal(cv.SectionInteractions)
	if err != nil {
		return err
	}
	const query = `
UPDATE cvs
SET section_interactions = $1
WHERE url_id = $2`
	_, err = r.DB.ExecContext(ctx, query, interactions, urlID)
	return err
}

// ListByUser lists CVs ordered newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]CV, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT ` + cvColumns + `
FROM cvs
WHERE user_id = $1
ORDER BY upload_date DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CV
	for rows.Next() {
		cv, err := scanCV(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cv)
	}
	return out, rows.Err()
}

// CountByUser returns the number of CVs a user owns.
func (r *PGRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM cvs WHERE user_id = $1`
	var count int
	if err := r.DB.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ClaimGuest reassigns a guest identity's CVs to an authenticated user.
func (r *PGRepo) ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (int, error) {
	const query = `UPDATE cvs SET user_id = $1 WHERE user_id = $2`
	res, err := r.DB.ExecContext(ctx, query, authedUserID, guestUserID)
	if err != nil {
		return 0, err
	}
	moved, _ := res.RowsAffected()
	return int(moved), nil
}

// Delete removes a CV permanently.
func (r *PGRepo) Delete(ctx context.Context, urlID string) error {
	const query = `DELETE FROM cvs WHERE url_id = $1`
	res, err := r.DB.ExecContext(ctx, query, urlID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCV(row rowScanner) (CV, error) {
	var cv CV
	var customName sql.NullString
	var fileURL sql.NullString
	var storageKey sql.NullString
	var structured []byte
	var html sql.NullString
	var placeholder sql.NullString
	var placeholderAt sql.NullTime
	var profilePic sql.NullString
	var lastViewed sql.NullTime
	var interactions []byte

	if err := row.Scan(
		&cv.ID,
		&cv.URLId,
		&customName,
		&cv.UserID,
		&cv.FileName,
		&cv.FileSize,
		&cv.FileType,
		&fileURL,
		&storageKey,
		&structured,
		&cv.Degraded,
		&html,
		&placeholder,
		&placeholderAt,
		&profilePic,
		&cv.UploadDate,
		&cv.Views,
		&lastViewed,
		&interactions,
	); err != nil {
		return CV{}, err
	}

	if customName.Valid {
		cv.CustomURLName = customName.String
	}
	if fileURL.Valid {
		cv.FileURL = fileURL.String
	}
	if storageKey.Valid {
		cv.StorageKey = storageKey.String
	}
	if html.Valid {
		cv.HTML = html.String
	}
	if placeholder.Valid {
		cv.PlaceholderPage = placeholder.String
	}
	if placeholderAt.Valid {
		cv.PlaceholderGenerated = &placeholderAt.Time
	}
	if profilePic.Valid {
		cv.ProfilePictureURL = profilePic.String
	}
	if lastViewed.Valid {
		cv.LastViewed = &lastViewed.Time
	}
	if len(structured) > 0 {
		if err := json.Unmarshal(structured, &cv.StructuredData); err != nil {
			return CV{}, err
		}
	}
	if len(interactions) > 0 {
		if err := json.Unmarshal(interactions, &cv.SectionInteractions); err != nil {
			return CV{}, err
		}
	}
	return cv, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ CVRepo = (*PGRepo)(nil)
