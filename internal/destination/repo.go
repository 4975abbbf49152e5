package destination

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/suPer8Hu/travel-assistant/internal/common"
	"github.com/suPer8Hu/travel-assistant/internal/models"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) List(ctx context.Context, f Filter) ([]models.Destination, error) {
	var out []models.Destination
	if err := f.apply(r.db.WithContext(ctx).Model(&models.Destination{})).
		Order("country ASC").Order("city ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Get(ctx context.Context, id string) (*models.Destination, error) {
	var d models.Destination
	if err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *Repo) Create(ctx context.Context, d *models.Destination) error {
	return r.db.WithContext(ctx).Create(d).Error
}

// Save overwrites every column of the row with d.ID, zero values included.
func (r *Repo) Save(ctx context.Context, d *models.Destination) error {
	return r.db.WithContext(ctx).Model(&models.Destination{}).
		Where("id = ?", d.ID).
		Select("*").
		Omit("id").
		Updates(d).Error
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Destination{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.ErrNotFound
	}
	return nil
}
