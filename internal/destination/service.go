package destination

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/suPer8Hu/travel-assistant/internal/common"
	"github.com/suPer8Hu/travel-assistant/internal/models"
)

const svcRelational = "relational store"

// Input is the writable part of a destination.
type Input struct {
	City             string    `json:"city" binding:"required"`
	Country          string    `json:"country" binding:"required"`
	Region           string    `json:"region"`
	ShortDescription string    `json:"short_description"`
	Latitude         string    `json:"latitude"`
	Longitude        string    `json:"longitude"`
	AvgTempMonthly   []float64 `json:"avg_temp_monthly"`
	BudgetLevel      string    `json:"budget_level"`

	Culture   int `json:"culture" binding:"min=0,max=5"`
	Adventure int `json:"adventure" binding:"min=0,max=5"`
	Nature    int `json:"nature" binding:"min=0,max=5"`
	Beaches   int `json:"beaches" binding:"min=0,max=5"`
	Nightlife int `json:"nightlife" binding:"min=0,max=5"`
	Cuisine   int `json:"cuisine" binding:"min=0,max=5"`
	Wellness  int `json:"wellness" binding:"min=0,max=5"`
	Urban     int `json:"urban" binding:"min=0,max=5"`
	Seclusion int `json:"seclusion" binding:"min=0,max=5"`

	DayTrip   bool `json:"day_trip"`
	LongTrip  bool `json:"long_trip"`
	OneWeek   bool `json:"one_week"`
	ShortTrip bool `json:"short_trip"`
	Weekend   bool `json:"weekend"`
}

func (in Input) toModel(id string) (*models.Destination, error) {
	d := &models.Destination{
		ID:               id,
		City:             in.City,
		Country:          in.Country,
		Region:           in.Region,
		ShortDescription: in.ShortDescription,
		Latitude:         in.Latitude,
		Longitude:        in.Longitude,
		BudgetLevel:      in.BudgetLevel,
		Culture:          in.Culture,
		Adventure:        in.Adventure,
		Nature:           in.Nature,
		Beaches:          in.Beaches,
		Nightlife:        in.Nightlife,
		Cuisine:          in.Cuisine,
		Wellness:         in.Wellness,
		Urban:            in.Urban,
		Seclusion:        in.Seclusion,
		DayTrip:          in.DayTrip,
		LongTrip:         in.LongTrip,
		OneWeek:          in.OneWeek,
		ShortTrip:        in.ShortTrip,
		Weekend:          in.Weekend,
	}
	if in.AvgTempMonthly != nil {
		b, err := json.Marshal(in.AvgTempMonthly)
		if err != nil {
			return nil, err
		}
		d.AvgTempMonthly = datatypes.JSON(b)
	}
	return d, nil
}

type Service struct {
	repo *Repo
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, f Filter) ([]models.Destination, error) {
	out, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, common.Upstream(svcRelational, err)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Destination, error) {
	return s.get(ctx, id)
}

func (s *Service) Create(ctx context.Context, in Input) (*models.Destination, error) {
	d, err := in.toModel(uuid.NewString())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, common.Upstream(svcRelational, err)
	}
	return d, nil
}

func (s *Service) Update(ctx context.Context, id string, in Input) (*models.Destination, error) {
	if _, err := s.get(ctx, id); err != nil {
		return nil, err
	}
	d, err := in.toModel(id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, d); err != nil {
		return nil, common.Upstream(svcRelational, err)
	}
	return d, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, id)
	if err == nil || errors.Is(err, common.ErrNotFound) {
		return err
	}
	return common.Upstream(svcRelational, err)
}

func (s *Service) get(ctx context.Context, id string) (*models.Destination, error) {
	d, err := s.repo.Get(ctx, id)
	if err == nil || errors.Is(err, common.ErrNotFound) {
		return d, err
	}
	return nil, common.Upstream(svcRelational, err)
}
