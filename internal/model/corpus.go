// Package model holds the persisted entities.
package model

import "time"

// Corpus is the indexed form of one uploaded CV, paired one-to-one with a
// vector collection.
type Corpus struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string    `gorm:"type:varchar(255);not null" json:"name"`
	UploadedAt     time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
	CollectionName string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"collection_name"`
	// ObjectKey locates the archived original in object storage; empty when archiving is off.
	ObjectKey string `gorm:"type:varchar(255)" json:"object_key,omitempty"`

	Segments  []Segment  `gorm:"foreignKey:CorpusID;constraint:OnDelete:CASCADE" json:"-"`
	Exchanges []Exchange `gorm:"foreignKey:CorpusID;constraint:OnDelete:SET NULL" json:"-"`
}

func (Corpus) TableName() string {
	return "corpora"
}

// Segment is one chunk of a Corpus. PointID is shared with the vector point
// that stores its embedding.
type Segment struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	CorpusID   uint   `gorm:"not null;uniqueIndex:idx_segment_corpus_chunk" json:"cv_id"`
	ChunkIndex int    `gorm:"not null;uniqueIndex:idx_segment_corpus_chunk" json:"chunk_index"`
	ChunkText  string `gorm:"type:text;not null" json:"chunk_text"`
	PointID    string `gorm:"type:varchar(64);not null" json:"point_id"`
}

func (Segment) TableName() string {
	return "segments"
}
