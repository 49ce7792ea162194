package models

// ActivityRecord is the persisted daily scoring row — exactly one per
// (user, civil date). Re-submission overwrites in place; the composite unique
// index is what makes the upsert idempotent.
//
// ActivityDate is a civil date ("2006-01-02", no timezone). Stored as a string
// on purpose: lexicographic order equals calendar order, which keeps window
// queries (BETWEEN start AND end) correct without timezone arithmetic.
type ActivityRecord struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex:idx_activity_user_date;not null" json:"external_user_id"`
	ActivityDate   string `gorm:"uniqueIndex:idx_activity_user_date;not null;type:varchar(10)" json:"activity_date"`

	// Raw metrics as submitted (post-validation)
	MoveCalories      float64  `json:"move_calories" gorm:"default:0"`
	ExerciseMinutes   float64  `json:"exercise_minutes" gorm:"default:0"`
	StandHours        float64  `json:"stand_hours" gorm:"default:0"`
	Steps             int64    `json:"steps" gorm:"default:0"`
	DistanceMeters    *float64 `json:"distance_meters,omitempty"`
	WorkoutsCompleted *int     `json:"workouts_completed,omitempty"`

	// Derived, server-authoritative — never accepted from a client
	MovePercentage     float64 `json:"move_percentage" gorm:"default:0"`
	ExercisePercentage float64 `json:"exercise_percentage" gorm:"default:0"`
	StandPercentage    float64 `json:"stand_percentage" gorm:"default:0"`
	TotalScore         float64 `json:"total_score" gorm:"default:0"`
	RingsClosed        int     `json:"rings_closed" gorm:"default:0"`

	// Set once the rings-closed push went out for this day; preserved across
	// overwrites so a re-submission never re-notifies.
	RingsClosedNotified bool `json:"rings_closed_notified" gorm:"default:false"`

	Timestamps
}
