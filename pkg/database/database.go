package database

import (
	"encoding/json"
	"fmt"
	"log"
	"skillcert_backend/internal/config"
	"skillcert_backend/internal/model"

	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig, migrate bool) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	if !migrate {
		return db, nil
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Println("Database migration completed")
	return db, nil
}

// Migrate creates the schema and seeds the starter test catalogue when it is empty.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.User{},
		&model.SkillTest{},
		&model.TestQuestion{},
		&model.TestSubmission{},
		&model.PracticalSubmission{},
		&model.Certification{},
	)
	if err != nil {
		return err
	}

	var count int64
	if err := db.Model(&model.SkillTest{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, t := range defaultTests() {
		if err := db.Create(&t).Error; err != nil {
			return err
		}
	}
	return nil
}

func options(opts ...string) datatypes.JSON {
	b, _ := json.Marshal(opts)
	return b
}

func defaultTests() []model.SkillTest {
	return []model.SkillTest{
		{
			Title:       "Go backend fundamentals",
			Description: "Concurrency basics and a small HTTP handler, recorded while you build it.",
			Skill:       "go",
			TimeLimit:   60,
			IsPublished: true,
			Questions: []model.TestQuestion{
				{Kind: model.MultipleChoice, Order: 1, Points: 1,
					Prompt:  "Which statement closes a channel?",
					Options: options("close(ch)", "ch.Close()", "ch <- nil"), Answer: "close(ch)"},
				{Kind: model.MultipleChoice, Order: 2, Points: 1,
					Prompt:  "What does a nil map panic on?",
					Options: options("reads", "writes", "len"), Answer: "writes"},
				{Kind: model.Practical, Order: 3, Points: 2, RequiresRecording: true,
					Prompt: "Write an HTTP handler that returns the request count as JSON. Upload the source and a screen recording."},
			},
		},
		{
			Title:       "SQL essentials",
			Description: "Joins and aggregation.",
			Skill:       "sql",
			TimeLimit:   30,
			IsPublished: true,
			Questions: []model.TestQuestion{
				{Kind: model.MultipleChoice, Order: 1, Points: 1,
					Prompt:  "Which join keeps unmatched rows from the left table?",
					Options: options("INNER JOIN", "LEFT JOIN", "CROSS JOIN"), Answer: "LEFT JOIN"},
				{Kind: model.MultipleChoice, Order: 2, Points: 1,
					Prompt:  "Which clause filters grouped rows?",
					Options: options("WHERE", "HAVING", "ORDER BY"), Answer: "HAVING"},
			},
		},
	}
}
