package database

import (
	"context"

	"gorm.io/gorm"

	"github.com/kbukum/diarkit/errors"
	"github.com/kbukum/diarkit/logger"
	"github.com/kbukum/diarkit/speakers"
)

const resourceTranscript = "transcript"

// Default and maximum page sizes for List.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Repository stores transcript records.
type Repository struct {
	db *DB
}

// NewRepository creates a Repository on db.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Save inserts rec, or replaces the stored record with the same id.
func (r *Repository) Save(ctx context.Context, rec *TranscriptRecord) error {
	if rec.ID == "" {
		return errors.InvalidInput("id", "is required")
	}
	if err := r.db.WithContext(ctx).Save(rec).Error; err != nil {
		return FromDatabase(err, resourceTranscript, rec.ID)
	}
	r.db.log.WithContext(logger.ContextWithRunID(ctx, rec.ID)).Debug("transcript saved",
		logger.Fields(logger.FieldCount, len(rec.Turns)))
	return nil
}

// Get loads the record with the given id.
func (r *Repository) Get(ctx context.Context, id string) (*TranscriptRecord, error) {
	var rec TranscriptRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, FromDatabase(err, resourceTranscript, id)
	}
	return &rec, nil
}

// ListOptions pages List.
type ListOptions struct {
	Limit  int
	Offset int
}

func (o ListOptions) normalized() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// List returns records newest first.
func (r *Repository) List(ctx context.Context, opts ListOptions) ([]TranscriptRecord, error) {
	opts = opts.normalized()
	var recs []TranscriptRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC").Order("id").
		Limit(opts.Limit).Offset(opts.Offset).
		Find(&recs).Error
	if err != nil {
		return nil, FromDatabase(err, resourceTranscript, "")
	}
	return recs, nil
}

// UpdateMapping resolves display names from m and persists both. Names are
// always resolved from the raw speaker ids, so repeated or chained updates
// never compound.
func (r *Repository) UpdateMapping(ctx context.Context, id string, m speakers.Mapping) (*TranscriptRecord, error) {
	var rec TranscriptRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&rec, "id = ?", id).Error; err != nil {
			return err
		}
		rec.Turns = speakers.Apply(rec.Turns, m)
		rec.Mapping = speakers.Complete(rec.Speakers, m)
		return tx.Save(&rec).Error
	})
	if err != nil {
		return nil, FromDatabase(err, resourceTranscript, id)
	}
	return &rec, nil
}

// Delete removes the record. Missing ids are not an error.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Delete(&TranscriptRecord{}, "id = ?", id).Error; err != nil {
		return FromDatabase(err, resourceTranscript, id)
	}
	return nil
}
