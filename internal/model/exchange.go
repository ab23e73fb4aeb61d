package model

import "time"

// Exchange records one question and the answer given. CorpusID is nulled when
// the corpus is deleted.
type Exchange struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Question  string    `gorm:"type:text;not null" json:"question"`
	Response  string    `gorm:"type:text;not null" json:"response"`
	Degraded  bool      `gorm:"not null;default:false" json:"degraded"`
	Timestamp time.Time `gorm:"autoCreateTime" json:"timestamp"`
	CorpusID  *uint     `gorm:"index" json:"cv_id"`
}

func (Exchange) TableName() string {
	return "exchanges"
}
