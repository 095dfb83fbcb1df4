package model

import (
	"errors"
	"time"
)

type CertificationStatus string

const (
	CertificationActive  CertificationStatus = "active"
	CertificationExpired CertificationStatus = "expired"
)

var ErrCertificationWindow = errors.New("certification expiry must be after issuance")

// swagger:model Certification
type Certification struct {
	UUIDBase
	UserID       uint                `gorm:"index" json:"userId"`
	Skill        string              `gorm:"size:100;index" json:"skill"`
	SubmissionID string              `gorm:"type:varchar(36);index" json:"submissionId"`
	Score        int                 `json:"score"`
	IssuedAt     time.Time           `json:"issuedAt"`
	ExpiresAt    time.Time           `json:"expiresAt"`
	Status       CertificationStatus `gorm:"size:20;default:'active'" json:"status"`
}

func (Certification) TableName() string {
	return "certifications"
}

func (c *Certification) Validate() error {
	if !c.ExpiresAt.After(c.IssuedAt) {
		return ErrCertificationWindow
	}
	return nil
}

// EffectiveStatus reports expired once ExpiresAt has passed, whatever was stored.
func (c *Certification) EffectiveStatus(now time.Time) CertificationStatus {
	if c.Status == CertificationExpired || !now.Before(c.ExpiresAt) {
		return CertificationExpired
	}
	return CertificationActive
}
