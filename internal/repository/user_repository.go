package repository

import (
	"skillcert_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(user *model.User) error {
	return r.DB.Create(user).Error
}

func (r *UserRepository) FindByID(id uint) (*model.User, error) {
	var user model.User
	err := r.DB.First(&user, id).Error
	return &user, err
}

func (r *UserRepository) FindByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.DB.Where("email = ?", email).First(&user).Error
	return &user, err
}

// FindWithCertifications loads the user and all of their certifications, newest first.
func (r *UserRepository) FindWithCertifications(id uint) (*model.User, error) {
	var user model.User
	err := r.DB.Preload("Certifications", func(db *gorm.DB) *gorm.DB {
		return db.Order("issued_at desc")
	}).First(&user, id).Error
	return &user, err
}

func (r *UserRepository) MarkSeller(id uint, at time.Time) error {
	return r.DB.Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_seller":    true,
		"seller_since": at,
	}).Error
}
