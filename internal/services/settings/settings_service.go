package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/models"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/services/fees"
)

type SettingsService struct {
	DB *gorm.DB

	initMu sync.Mutex
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{DB: db}
}

// UpdateInput carries the fields an admin wants to change. Nil means keep.
type UpdateInput struct {
	PlatformFeePercentage         *decimal.Decimal       `json:"platform_fee_percentage"`
	ProcessingFeePercentage       *decimal.Decimal       `json:"processing_fee_percentage"`
	FixedProcessingFee            *decimal.Decimal       `json:"fixed_processing_fee"`
	ProviderCommissionPercentage  *decimal.Decimal       `json:"provider_commission_percentage"`
	InspectorCommissionPercentage *decimal.Decimal       `json:"inspector_commission_percentage"`
	MinimumWithdrawalAmount       *decimal.Decimal       `json:"minimum_withdrawal_amount"`
	WithdrawalFees                *models.MethodFeeTable `json:"withdrawal_fees"`
}

func (in UpdateInput) apply(base models.AdminSettings) models.AdminSettings {
	next := base
	next.ID = uuid.Nil
	next.CreatedAt = time.Time{}
	next.UpdatedBy = nil
	if in.PlatformFeePercentage != nil {
		next.PlatformFeePercentage = *in.PlatformFeePercentage
	}
	if in.ProcessingFeePercentage != nil {
		next.ProcessingFeePercentage = *in.ProcessingFeePercentage
	}
	if in.FixedProcessingFee != nil {
		next.FixedProcessingFee = *in.FixedProcessingFee
	}
	if in.ProviderCommissionPercentage != nil {
		next.ProviderCommissionPercentage = *in.ProviderCommissionPercentage
	}
	if in.InspectorCommissionPercentage != nil {
		next.InspectorCommissionPercentage = *in.InspectorCommissionPercentage
	}
	if in.MinimumWithdrawalAmount != nil {
		next.MinimumWithdrawalAmount = *in.MinimumWithdrawalAmount
	}
	if in.WithdrawalFees != nil {
		table := models.MethodFeeTable{}
		for k, v := range base.MethodFees() {
			table[k] = v
		}
		for k, v := range *in.WithdrawalFees {
			table[k] = v
		}
		next.WithdrawalFees = datatypes.NewJSONType(table)
	}
	return next
}

// Active returns the current snapshot, creating the defaults on first use.
func (s *SettingsService) Active(ctx context.Context) (models.AdminSettings, error) {
	cur, err := s.findActive(s.DB.WithContext(ctx))
	if err == nil {
		return cur, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.AdminSettings{}, err
	}

	s.initMu.Lock()
	defer s.initMu.Unlock()

	if cur, err := s.findActive(s.DB.WithContext(ctx)); err == nil {
		return cur, nil
	}

	def := models.DefaultAdminSettings()
	def.Version = 1
	def.IsActive = true
	if err := s.DB.WithContext(ctx).Create(&def).Error; err != nil {
		// another instance may have won the race on version 1
		if cur, ferr := s.findActive(s.DB.WithContext(ctx)); ferr == nil {
			return cur, nil
		}
		return models.AdminSettings{}, fmt.Errorf("create default settings: %w", err)
	}
	log.WithField("version", def.Version).Info("default admin settings created")
	return def, nil
}

func (s *SettingsService) findActive(tx *gorm.DB) (models.AdminSettings, error) {
	var cur models.AdminSettings
	err := tx.Where("is_active = ?", true).Order("version DESC").First(&cur).Error
	return cur, err
}

// Calculator binds a fee calculator to the active snapshot.
func (s *SettingsService) Calculator(ctx context.Context) (fees.Calculator, error) {
	cur, err := s.Active(ctx)
	if err != nil {
		return fees.Calculator{}, err
	}
	return fees.New(cur), nil
}

// Update writes a new active version. The previous row stays for audit.
func (s *SettingsService) Update(ctx context.Context, actor models.Principal, in UpdateInput) (models.AdminSettings, error) {
	if !actor.IsAdmin() {
		return models.AdminSettings{}, apperr.Forbidden("ADMIN_ONLY", "only admins can change fee settings")
	}
	// make sure a base version exists before locking it
	if _, err := s.Active(ctx); err != nil {
		return models.AdminSettings{}, err
	}

	var next models.AdminSettings
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur models.AdminSettings
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("is_active = ?", true).Order("version DESC").First(&cur).Error; err != nil {
			return err
		}

		next = in.apply(cur)
		if err := fees.Validate(next); err != nil {
			return err
		}
		next.Version = cur.Version + 1
		next.IsActive = true
		next.UpdatedBy = &actor.ID

		if err := tx.Model(&models.AdminSettings{}).Where("id = ?", cur.ID).Update("is_active", false).Error; err != nil {
			return err
		}
		if err := tx.Create(&next).Error; err != nil {
			return apperr.Conflict("SETTINGS_CHANGED", "settings were changed concurrently, retry")
		}
		return nil
	})
	if err != nil {
		return models.AdminSettings{}, err
	}

	log.WithFields(log.Fields{"version": next.Version, "admin": actor.ID}).Info("admin settings updated")
	return next, nil
}

// Preview computes the full breakdown for amount without persisting anything.
// When proposed is set the figures use the active snapshot with it applied.
func (s *SettingsService) Preview(ctx context.Context, amount decimal.Decimal, proposed *UpdateInput) (fees.Preview, error) {
	if amount.IsNegative() {
		return fees.Preview{}, apperr.Validation("INVALID_AMOUNT", "amount must not be negative")
	}
	cur, err := s.Active(ctx)
	if err != nil {
		return fees.Preview{}, err
	}
	if proposed != nil {
		cur = proposed.apply(cur)
		if err := fees.Validate(cur); err != nil {
			return fees.Preview{}, err
		}
	}
	return fees.New(cur).Preview(amount), nil
}

func (s *SettingsService) History(ctx context.Context) ([]models.AdminSettings, error) {
	var rows []models.AdminSettings
	err := s.DB.WithContext(ctx).Order("version DESC").Find(&rows).Error
	return rows, err
}
