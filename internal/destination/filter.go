package destination

import (
	"strings"

	"gorm.io/gorm"
)

// Filter narrows the destination list. Zero values are ignored.
type Filter struct {
	IDs         []string `form:"id"`
	City        string   `form:"city"`
	Country     string   `form:"country"`
	Region      string   `form:"region"`
	BudgetLevel string   `form:"budget_level"`

	MinCulture   *int `form:"min_culture" binding:"omitempty,min=0,max=5"`
	MinAdventure *int `form:"min_adventure" binding:"omitempty,min=0,max=5"`
	MinNature    *int `form:"min_nature" binding:"omitempty,min=0,max=5"`
	MinBeaches   *int `form:"min_beaches" binding:"omitempty,min=0,max=5"`
	MinNightlife *int `form:"min_nightlife" binding:"omitempty,min=0,max=5"`
	MinCuisine   *int `form:"min_cuisine" binding:"omitempty,min=0,max=5"`
	MinWellness  *int `form:"min_wellness" binding:"omitempty,min=0,max=5"`
	MinUrban     *int `form:"min_urban" binding:"omitempty,min=0,max=5"`
	MinSeclusion *int `form:"min_seclusion" binding:"omitempty,min=0,max=5"`

	DayTrip   *bool `form:"day_trip"`
	LongTrip  *bool `form:"long_trip"`
	OneWeek   *bool `form:"one_week"`
	ShortTrip *bool `form:"short_trip"`
	Weekend   *bool `form:"weekend"`
}

func (f Filter) apply(q *gorm.DB) *gorm.DB {
	if len(f.IDs) > 0 {
		q = q.Where("id IN ?", f.IDs)
	}
	if city := strings.TrimSpace(f.City); city != "" {
		q = q.Where("LOWER(city) LIKE ?", "%"+strings.ToLower(city)+"%")
	}
	exact := []struct {
		col string
		v   string
	}{
		{"country", f.Country}, {"region", f.Region}, {"budget_level", f.BudgetLevel},
	}
	for _, ex := range exact {
		if v := strings.TrimSpace(ex.v); v != "" {
			q = q.Where(ex.col+" = ?", v)
		}
	}

	floors := []struct {
		col string
		v   *int
	}{
		{"culture", f.MinCulture}, {"adventure", f.MinAdventure}, {"nature", f.MinNature},
		{"beaches", f.MinBeaches}, {"nightlife", f.MinNightlife}, {"cuisine", f.MinCuisine},
		{"wellness", f.MinWellness}, {"urban", f.MinUrban}, {"seclusion", f.MinSeclusion},
	}
	for _, fl := range floors {
		if fl.v != nil {
			q = q.Where(fl.col+" >= ?", *fl.v)
		}
	}

	flags := []struct {
		col string
		v   *bool
	}{
		{"day_trip", f.DayTrip}, {"long_trip", f.LongTrip}, {"one_week", f.OneWeek},
		{"short_trip", f.ShortTrip}, {"weekend", f.Weekend},
	}
	for _, fl := range flags {
		if fl.v != nil {
			q = q.Where(fl.col+" = ?", *fl.v)
		}
	}
	return q
}

// Empty reports whether the filter selects every destination.
func (f Filter) Empty() bool {
	if len(f.IDs) > 0 || strings.TrimSpace(f.City+f.Country+f.Region+f.BudgetLevel) != "" {
		return false
	}
	for _, v := range []*int{f.MinCulture, f.MinAdventure, f.MinNature, f.MinBeaches, f.MinNightlife,
		f.MinCuisine, f.MinWellness, f.MinUrban, f.MinSeclusion} {
		if v != nil {
			return false
		}
	}
	for _, v := range []*bool{f.DayTrip, f.LongTrip, f.OneWeek, f.ShortTrip, f.Weekend} {
		if v != nil {
			return false
		}
	}
	return true
}
