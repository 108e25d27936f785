package models

// Alert records that the current price came within the distance threshold of
// a stored level. Alerts are transient evidence: appended each cycle and kept
// as an audit trail, they are the only trigger feeding the scoring stage.
type Alert struct {
	Symbol       string    `json:"symbol"`
	Timeframe    string    `json:"timeframe"`
	LevelPrice   float64   `json:"level_price"`
	CurrentPrice float64   `json:"current_price"`
	Type         LevelType `json:"type"`
	Distance     float64   `json:"distance"` // percent distance to the level
	Strength     int       `json:"strength"`
	Source       string    `json:"source"`
	CreatedAt    int64     `json:"created_at"` // epoch seconds
}
