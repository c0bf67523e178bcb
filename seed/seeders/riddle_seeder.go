package seeders

import (
	"encoding/json"
	"log"
	"time"

	"github.com/riddlehouse/riddle_api/model"
	"gorm.io/gorm"
)

// RiddleSeeder installs a small demo riddle for local development: two
// level sets, a secret branch and both achievement condition operators.
type RiddleSeeder struct {
	db *gorm.DB
}

// NewRiddleSeeder creates a new riddle seeder
func NewRiddleSeeder(db *gorm.DB) *RiddleSeeder {
	return &RiddleSeeder{db: db}
}

// SeedDemoRiddle seeds the demo riddle and all of its content
func (s *RiddleSeeder) SeedDemoRiddle() error {
	if err := s.seedRiddle(); err != nil {
		return err
	}
	if err := s.seedLevelSets(); err != nil {
		return err
	}
	if err := s.seedLevels(); err != nil {
		return err
	}
	if err := s.seedRequirements(); err != nil {
		return err
	}
	if err := s.seedAchievements(); err != nil {
		return err
	}

	log.Println("Demo riddle seeding completed successfully")
	return nil
}

func (s *RiddleSeeder) seedRiddle() error {
	riddle := model.Riddle{
		Alias:     "demo",
		FullName:  "Demo Riddle",
		RootPaths: jsonArray([]string{"https://demo.riddlehouse.net"}),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	var existing model.Riddle
	if err := s.db.Where("alias = ?", riddle.Alias).First(&existing).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			if err := s.db.Create(&riddle).Error; err != nil {
				log.Printf("Error creating riddle %s: %v", riddle.Alias, err)
				return err
			}
			log.Printf("Created riddle: %s", riddle.Alias)
		} else {
			return err
		}
	} else {
		log.Printf("Riddle %s already exists, skipping", riddle.Alias)
	}

	return nil
}

func (s *RiddleSeeder) seedLevelSets() error {
	sets := []model.LevelSet{
		{
			ID:             "set_demo_1",
			RiddleAlias:    "demo",
			SetIndex:       1,
			Name:           "The Gate",
			FinalLevel:     "two",
			CompletionRole: "gatekeeper",
		},
		{
			ID:          "set_demo_2",
			RiddleAlias: "demo",
			SetIndex:    2,
			Name:        "The Vault",
			FinalLevel:  "three",
		},
	}

	for _, set := range sets {
		if err := s.createIfAbsent(&model.LevelSet{}, "id = ?", set.ID, &set); err != nil {
			return err
		}
	}
	return nil
}

func (s *RiddleSeeder) seedLevels() error {
	levels := []model.Level{
		{
			ID:          "lvl_demo_one",
			RiddleAlias: "demo",
			Name:        "one",
			SetIndex:    1,
			LevelIndex:  1,
			FrontPaths:  jsonArray([]string{"/a.htm"}),
			AnswerPath:  "/a/ans.htm",
			Rank:        "D",
		},
		{
			ID:          "lvl_demo_two",
			RiddleAlias: "demo",
			Name:        "two",
			SetIndex:    1,
			LevelIndex:  2,
			FrontPaths:  jsonArray([]string{"/b.htm"}),
			AnswerPath:  "/b/ans.htm",
			Rank:        "C",
		},
		{
			ID:          "lvl_demo_three",
			RiddleAlias: "demo",
			Name:        "three",
			SetIndex:    2,
			LevelIndex:  1,
			FrontPaths:  jsonArray([]string{"/c.htm"}),
			AnswerPath:  "/c/ans.htm",
			Rank:        "A",
		},
		{
			ID:          "lvl_demo_shadow",
			RiddleAlias: "demo",
			Name:        "shadow",
			IsSecret:    true,
			FrontPaths:  jsonArray([]string{"/secret.htm"}),
			AnswerPath:  "/secret/ans.htm",
			Rank:        "B",
		},
	}

	for _, level := range levels {
		if err := s.createIfAbsent(&model.Level{}, "id = ?", level.ID, &level); err != nil {
			return err
		}
	}
	return nil
}

func (s *RiddleSeeder) seedRequirements() error {
	requirements := []model.LevelRequirement{
		{
			ID:          "req_demo_two_one",
			RiddleAlias: "demo",
			LevelName:   "two",
			Requires:    "one",
		},
		{
			ID:          "req_demo_three_two",
			RiddleAlias: "demo",
			LevelName:   "three",
			Requires:    "two",
		},
	}

	for _, req := range requirements {
		if err := s.createIfAbsent(&model.LevelRequirement{}, "id = ?", req.ID, &req); err != nil {
			return err
		}
	}
	return nil
}

func (s *RiddleSeeder) seedAchievements() error {
	achievements := []model.Achievement{
		{
			ID:          "ach_demo_lucky",
			RiddleAlias: "demo",
			Title:       "Lucky Find",
			Description: "Stumble onto any of the hidden corners.",
			Rank:        "D",
			Operator:    "or",
			Paths:       jsonArray([]string{"/hidden/luck.htm", "/hidden/charm.htm"}),
			ImagePath:   "achievements/demo/lucky.png",
		},
		{
			ID:          "ach_demo_cartographer",
			RiddleAlias: "demo",
			Title:       "Cartographer",
			Description: "Chart every corner of the back rooms.",
			Rank:        "B",
			Operator:    "and",
			Paths:       jsonArray([]string{"/rooms/east.htm", "/rooms/west.htm", "/rooms/north.htm"}),
			ImagePath:   "achievements/demo/cartographer.png",
		},
	}

	for _, ach := range achievements {
		if err := s.createIfAbsent(&model.Achievement{}, "id = ?", ach.ID, &ach); err != nil {
			return err
		}
	}
	return nil
}

func (s *RiddleSeeder) createIfAbsent(existing interface{}, query string, id string, record interface{}) error {
	if err := s.db.Where(query, id).First(existing).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			if err := s.db.Create(record).Error; err != nil {
				log.Printf("Error creating %s: %v", id, err)
				return err
			}
			log.Printf("Created %s", id)
			return nil
		}
		return err
	}
	log.Printf("%s already exists, skipping", id)
	return nil
}

func jsonArray(values []string) json.RawMessage {
	data, _ := json.Marshal(values)
	return data
}
