package store

import (
	"context"
	"fmt"

	"socialflow/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type IntegrationRepository struct {
	db *gorm.DB
}

func NewIntegrationRepository(db *gorm.DB) *IntegrationRepository {
	return &IntegrationRepository{db: db}
}

// Save stores credentials for (tenant, platform). An existing record for the
// pair is patched in place and reactivated.
func (r *IntegrationRepository) Save(ctx context.Context, in *models.Integration) error {
	if !in.Type.Valid() {
		return fmt.Errorf("save integration: unknown platform %q", in.Type)
	}
	in.IsActive = true
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token", "refresh_token", "expires_at",
			"platform_user_id", "platform_username",
			"phone_number_id", "business_account_id",
			"is_active", "updated_at",
		}),
	}).Create(in).Error
	if err != nil {
		return fmt.Errorf("save %s integration for %s: %w", in.Type, in.TenantID, err)
	}
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND type = ?", in.TenantID, in.Type).
		First(in).Error
}

// GetActive returns the tenant's active integration for platform.
func (r *IntegrationRepository) GetActive(ctx context.Context, tenantID string, platform models.Platform) (*models.Integration, error) {
	var integration models.Integration
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND type = ? AND is_active = ?", tenantID, platform, true).
		First(&integration).Error
	if err != nil {
		return nil, notFound(err, ErrIntegrationNotFound)
	}
	return &integration, nil
}

// FindByAccount resolves the integration that owns a platform account: the
// Instagram business account id, or the WhatsApp phone number id.
func (r *IntegrationRepository) FindByAccount(ctx context.Context, platform models.Platform, accountID string) (*models.Integration, error) {
	column := "platform_user_id"
	if platform == models.PlatformWhatsApp {
		column = "phone_number_id"
	}
	var integration models.Integration
	err := r.db.WithContext(ctx).
		Where("type = ? AND is_active = ? AND "+column+" = ?", platform, true, accountID).
		First(&integration).Error
	if err != nil {
		return nil, notFound(err, ErrIntegrationNotFound)
	}
	return &integration, nil
}

func (r *IntegrationRepository) List(ctx context.Context, tenantID string) ([]models.Integration, error) {
	var integrations []models.Integration
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("type ASC").Find(&integrations).Error
	return integrations, err
}

func (r *IntegrationRepository) Disconnect(ctx context.Context, tenantID string, id uint) error {
	res := r.db.WithContext(ctx).
		Model(&models.Integration{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrIntegrationNotFound
	}
	return nil
}
