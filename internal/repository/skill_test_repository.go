package repository

import (
	"skillcert_backend/internal/model"

	"gorm.io/gorm"
)

type SkillTestRepository struct {
	DB *gorm.DB
}

func NewSkillTestRepository(db *gorm.DB) *SkillTestRepository {
	return &SkillTestRepository{DB: db}
}

func orderedQuestions(db *gorm.DB) *gorm.DB {
	return db.Order("`order` asc, id asc")
}

// Create stores the test together with its questions.
func (r *SkillTestRepository) Create(test *model.SkillTest) error {
	return r.DB.Create(test).Error
}

func (r *SkillTestRepository) FindByID(id uint) (*model.SkillTest, error) {
	var t model.SkillTest
	err := r.DB.Preload("Questions", orderedQuestions).First(&t, id).Error
	return &t, err
}

func (r *SkillTestRepository) List(publishedOnly bool) ([]model.SkillTest, error) {
	var ts []model.SkillTest
	query := r.DB.Model(&model.SkillTest{})
	if publishedOnly {
		query = query.Where("is_published = ?", true)
	}
	err := query.Order("skill asc, id asc").Find(&ts).Error
	return ts, err
}
