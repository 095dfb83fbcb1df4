package repository

import (
	"skillcert_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type CertificationRepository struct {
	DB *gorm.DB
}

func NewCertificationRepository(db *gorm.DB) *CertificationRepository {
	return &CertificationRepository{DB: db}
}

func (r *CertificationRepository) Create(c *model.Certification) error {
	return r.DB.Create(c).Error
}

func (r *CertificationRepository) ListByUser(userID uint) ([]model.Certification, error) {
	var cs []model.Certification
	err := r.DB.Where("user_id = ?", userID).Order("issued_at desc").Find(&cs).Error
	return cs, err
}

// ExpireOverdue flips active certifications past their expiry and returns the affected user ids.
func (r *CertificationRepository) ExpireOverdue(now time.Time) ([]uint, error) {
	var userIDs []uint
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&model.Certification{}).
			Where("status = ? AND expires_at <= ?", model.CertificationActive, now)
		if err := q.Distinct().Pluck("user_id", &userIDs).Error; err != nil {
			return err
		}
		if len(userIDs) == 0 {
			return nil
		}
		return tx.Model(&model.Certification{}).
			Where("status = ? AND expires_at <= ?", model.CertificationActive, now).
			Update("status", model.CertificationExpired).Error
	})
	return userIDs, err
}
