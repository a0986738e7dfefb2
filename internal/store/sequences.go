package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"socialflow/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// Subscribe enrolls a contact at step 0, due now. Re-subscribing an enrolled
// contact returns the existing subscription with created=false.
func (r *SequenceRepository) Subscribe(ctx context.Context, sequenceID, contactID uint) (*models.SequenceSubscription, bool, error) {
	var (
		sub     models.SequenceSubscription
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.Contact{}, contactID, ErrContactNotFound); err != nil {
			return err
		}
		if err := exists(tx, &models.Sequence{}, sequenceID, ErrSequenceNotFound); err != nil {
			return err
		}

		now := time.Now()
		sub = models.SequenceSubscription{
			SequenceID:  sequenceID,
			ContactID:   contactID,
			CurrentStep: 0,
			Status:      models.SubscriptionActive,
			NextStepAt:  &now,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sequence_id"}, {Name: "contact_id"}},
			DoNothing: true,
		}).Create(&sub)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected == 1

		if !created {
			return tx.Where("sequence_id = ? AND contact_id = ?", sequenceID, contactID).First(&sub).Error
		}

		return tx.Model(&models.Sequence{}).Where("id = ?", sequenceID).UpdateColumns(map[string]interface{}{
			"total_subscribers":  gorm.Expr("total_subscribers + 1"),
			"active_subscribers": gorm.Expr("active_subscribers + 1"),
		}).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("subscribe contact %d to sequence %d: %w", contactID, sequenceID, err)
	}
	return &sub, created, nil
}

func (r *SequenceRepository) Subscriptions(ctx context.Context, sequenceID uint) ([]models.SequenceSubscription, error) {
	var subs []models.SequenceSubscription
	err := r.db.WithContext(ctx).Where("sequence_id = ?", sequenceID).Order("id ASC").Find(&subs).Error
	return subs, err
}

func (r *SequenceRepository) Create(ctx context.Context, seq *models.Sequence) error {
	if seq.Status == "" {
		seq.Status = models.FlowStatusDraft
	}
	return r.db.WithContext(ctx).Create(seq).Error
}

func (r *SequenceRepository) Get(ctx context.Context, tenantID string, id uint) (*models.Sequence, error) {
	var seq models.Sequence
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&seq, id).Error; err != nil {
		return nil, notFound(err, ErrSequenceNotFound)
	}
	return &seq, nil
}

func (r *SequenceRepository) List(ctx context.Context, tenantID string) ([]models.Sequence, error) {
	var seqs []models.Sequence
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("created_at DESC").Find(&seqs).Error
	return seqs, err
}

func (r *SequenceRepository) SetStatus(ctx context.Context, tenantID string, id uint, status models.FlowStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Sequence{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		UpdateColumns(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSequenceNotFound
	}
	return nil
}

func exists(tx *gorm.DB, model interface{}, id uint, sentinel error) error {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return sentinel
	}
	return nil
}

// IsNotFound reports whether err is one of the store's not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound) ||
		errors.Is(err, ErrContactNotFound) ||
		errors.Is(err, ErrSequenceNotFound) ||
		errors.Is(err, ErrIntegrationNotFound)
}
