package models

import "gorm.io/datatypes"

// Destination is a travel location with 1-5 theme scores and trip-length flags.
type Destination struct {
	ID               string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	City             string         `gorm:"type:varchar(128);not null;index" json:"city"`
	Country          string         `gorm:"type:varchar(128);not null;index" json:"country"`
	Region           string         `gorm:"type:varchar(64);not null;index" json:"region"`
	ShortDescription string         `gorm:"type:text" json:"short_description"`
	Latitude         string         `gorm:"type:varchar(32)" json:"latitude"`
	Longitude        string         `gorm:"type:varchar(32)" json:"longitude"`
	AvgTempMonthly   datatypes.JSON `json:"avg_temp_monthly,omitempty"`
	BudgetLevel      string         `gorm:"type:varchar(32);index" json:"budget_level"`

	Culture   int `json:"culture"`
	Adventure int `json:"adventure"`
	Nature    int `json:"nature"`
	Beaches   int `json:"beaches"`
	Nightlife int `json:"nightlife"`
	Cuisine   int `json:"cuisine"`
	Wellness  int `json:"wellness"`
	Urban     int `json:"urban"`
	Seclusion int `json:"seclusion"`

	DayTrip   bool `json:"day_trip"`
	LongTrip  bool `json:"long_trip"`
	OneWeek   bool `json:"one_week"`
	ShortTrip bool `json:"short_trip"`
	Weekend   bool `json:"weekend"`
}

func (Destination) TableName() string { return "destinations" }
