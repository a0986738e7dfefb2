package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"socialflow/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContactInput carries the identity and optional profile fields of a
// platform user. Empty profile fields never overwrite stored values.
type ContactInput struct {
	TenantID       string
	Platform       models.Platform
	PlatformUserID string
	Username       string
	Name           string
	Email          string
	Phone          string
}

// ContactRepository resolves contacts by platform user id. The lookup is not
// scoped by tenant: a platform user id identifies one contact system-wide.
type ContactRepository struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

var mergedProfileColumns = []string{"username", "name", "email", "phone"}

// Upsert records an interaction with a platform user. A new contact starts
// with one message; an existing one gets non-empty fields merged over its
// profile, its message count incremented and its last interaction bumped.
// The whole merge is one INSERT ... ON CONFLICT statement.
func (r *ContactRepository) Upsert(ctx context.Context, in ContactInput) (uint, error) {
	if in.PlatformUserID == "" {
		return 0, fmt.Errorf("upsert contact: empty platform user id")
	}
	now := time.Now()

	updates := clause.Set{
		{Column: clause.Column{Name: "last_interaction_at"}, Value: now},
		{Column: clause.Column{Name: "updated_at"}, Value: now},
		{Column: clause.Column{Name: "total_messages"}, Value: gorm.Expr("contacts.total_messages + 1")},
	}
	for _, col := range mergedProfileColumns {
		updates = append(updates, clause.Assignment{
			Column: clause.Column{Name: col},
			Value:  gorm.Expr(fmt.Sprintf("COALESCE(NULLIF(excluded.%s, ''), contacts.%s)", col, col)),
		})
	}

	contact := models.Contact{
		TenantID:          in.TenantID,
		Platform:          in.Platform,
		PlatformUserID:    in.PlatformUserID,
		Username:          in.Username,
		Name:              in.Name,
		Email:             in.Email,
		Phone:             in.Phone,
		LastInteractionAt: &now,
		TotalMessages:     1,
		IsSubscribed:      true,
	}

	var id uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform_user_id"}},
			DoUpdates: updates,
		}).Create(&contact).Error
		if err != nil {
			return err
		}
		id, err = contactID(tx, in.PlatformUserID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("upsert contact %s: %w", in.PlatformUserID, err)
	}
	return id, nil
}

// AddTag adds tag to the contact, creating the contact first if needed. A
// contact created here starts with zero messages because tagging is not an
// interaction. Adding an existing tag is a no-op.
func (r *ContactRepository) AddTag(ctx context.Context, in ContactInput, tag string) (uint, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return 0, fmt.Errorf("add tag: empty tag")
	}
	if in.PlatformUserID == "" {
		return 0, fmt.Errorf("add tag: empty platform user id")
	}

	var id uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		contact := models.Contact{
			TenantID:          in.TenantID,
			Platform:          in.Platform,
			PlatformUserID:    in.PlatformUserID,
			LastInteractionAt: &now,
			IsSubscribed:      true,
		}
		err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform_user_id"}},
			DoNothing: true,
		}).Create(&contact).Error
		if err != nil {
			return err
		}

		id, err = contactID(tx, in.PlatformUserID)
		if err != nil {
			return err
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "contact_id"}, {Name: "tag"}},
			DoNothing: true,
		}).Create(&models.ContactTag{ContactID: id, Tag: tag}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("add tag %q to %s: %w", tag, in.PlatformUserID, err)
	}
	return id, nil
}

func (r *ContactRepository) RemoveTag(ctx context.Context, tenantID string, contactID uint, tag string) error {
	if _, err := r.Get(ctx, tenantID, contactID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("contact_id = ? AND tag = ?", contactID, tag).
		Delete(&models.ContactTag{}).Error
}

// TagContact adds a tag to a known contact by id.
func (r *ContactRepository) TagContact(ctx context.Context, tenantID string, contactID uint, tag string) error {
	if _, err := r.Get(ctx, tenantID, contactID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "contact_id"}, {Name: "tag"}},
		DoNothing: true,
	}).Create(&models.ContactTag{ContactID: contactID, Tag: tag}).Error
}

func (r *ContactRepository) FindByPlatformUser(ctx context.Context, platformUserID string) (*models.Contact, error) {
	var contact models.Contact
	err := r.db.WithContext(ctx).
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("platform_user_id = ?", platformUserID).
		First(&contact).Error
	if err != nil {
		return nil, notFound(err, ErrContactNotFound)
	}
	return &contact, nil
}

func (r *ContactRepository) Get(ctx context.Context, tenantID string, id uint) (*models.Contact, error) {
	var contact models.Contact
	err := r.db.WithContext(ctx).
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("tenant_id = ?", tenantID).
		First(&contact, id).Error
	if err != nil {
		return nil, notFound(err, ErrContactNotFound)
	}
	return &contact, nil
}

type ContactFilter struct {
	Platform models.Platform
	Tag      string
	Search   string
	Limit    int
	Offset   int
}

func (r *ContactRepository) List(ctx context.Context, tenantID string, f ContactFilter) ([]models.Contact, error) {
	q := r.db.WithContext(ctx).
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("tenant_id = ?", tenantID)
	if f.Platform != "" {
		q = q.Where("platform = ?", f.Platform)
	}
	if f.Tag != "" {
		q = q.Where("id IN (?)", r.db.Model(&models.ContactTag{}).Select("contact_id").Where("tag = ?", f.Tag))
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(username) LIKE ? OR LOWER(email) LIKE ?)", like, like, like)
	}
	if f.Limit <= 0 {
		f.Limit = 100
	}

	var contacts []models.Contact
	err := q.Order("last_interaction_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&contacts).Error
	return contacts, err
}

func contactID(tx *gorm.DB, platformUserID string) (uint, error) {
	var ids []uint
	if err := tx.Model(&models.Contact{}).Where("platform_user_id = ?", platformUserID).Limit(1).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, ErrContactNotFound
	}
	return ids[0], nil
}
