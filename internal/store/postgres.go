package store

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type passageRow struct {
	ID   uint
	Text string
}

func (passageRow) TableName() string { return "passages" }

type raceRow struct {
	ID        uint
	PassageID uint
	CreatedAt int64 `gorm:"autoCreateTime:milli"`
}

func (raceRow) TableName() string { return "races" }

type resultRow struct {
	ID       uint
	RaceID   uint
	UserID   uint
	Username string
	WPM      float64
	Rank     int
}

func (resultRow) TableName() string { return "results" }

// Postgres implements Store on a gorm connection.
type Postgres struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewPostgres(dsn string, zl *zap.Logger) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&passageRow{}, &raceRow{}, &resultRow{}); err != nil {
		return nil, err
	}
	return &Postgres{db: db, log: zl}, nil
}

func (p *Postgres) GetRace(ctx context.Context, id uint) (Race, error) {
	var race raceRow
	if err := p.db.WithContext(ctx).First(&race, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Race{}, ErrNotFound
		}
		return Race{}, err
	}

	var passage passageRow
	if err := p.db.WithContext(ctx).First(&passage, race.PassageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Race{}, ErrNotFound
		}
		return Race{}, err
	}

	var rows []resultRow
	if err := p.db.WithContext(ctx).
		Where("race_id = ?", race.ID).
		Order(`"rank" asc`).
		Find(&rows).Error; err != nil {
		return Race{}, err
	}

	results := make([]Result, 0, len(rows))
	for _, r := range rows {
		results = append(results, Result{UserID: r.UserID, Username: r.Username, WPM: r.WPM, Rank: r.Rank})
	}
	return Race{
		ID:        race.ID,
		PassageID: race.PassageID,
		Passage:   passage.Text,
		Results:   results,
		CreatedAt: time.UnixMilli(race.CreatedAt),
	}, nil
}

func (p *Postgres) CreateRace(ctx context.Context, passageID uint) (Race, error) {
	var passage passageRow
	if err := p.db.WithContext(ctx).First(&passage, passageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Race{}, ErrNotFound
		}
		return Race{}, err
	}

	race := raceRow{PassageID: passageID}
	if err := p.db.WithContext(ctx).Create(&race).Error; err != nil {
		return Race{}, err
	}
	p.log.Debug("race created", zap.Uint("race", race.ID), zap.Uint("passage", passageID))
	return Race{
		ID:        race.ID,
		PassageID: passageID,
		Passage:   passage.Text,
		Results:   []Result{},
		CreatedAt: time.UnixMilli(race.CreatedAt),
	}, nil
}

func (p *Postgres) RandomPassage(ctx context.Context) (uint, string, error) {
	var passage passageRow
	err := p.db.WithContext(ctx).Order("random()").Limit(1).Take(&passage).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, "", ErrNotFound
		}
		return 0, "", err
	}
	return passage.ID, passage.Text, nil
}
