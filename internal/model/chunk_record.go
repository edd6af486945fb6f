package model

import "time"

// ChunkRecord maps to the document_chunks table, the relational catalog of
// what each document was split into.
type ChunkRecord struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	ChunkID      string    `gorm:"type:varchar(191);not null;uniqueIndex;column:chunk_id" json:"chunk_id"`
	DocumentID   string    `gorm:"type:varchar(191);not null;index;column:document_id" json:"document_id"`
	Seq          int       `gorm:"not null;column:seq" json:"sequence_index"`
	TextContent  string    `gorm:"type:text;column:text_content" json:"text"`
	StartOffset  int       `gorm:"not null;column:start_offset" json:"start_offset"`
	EndOffset    int       `gorm:"not null;column:end_offset" json:"end_offset"`
	SectionID    string    `gorm:"type:varchar(100);column:section_id" json:"section_id,omitempty"`
	Severity     string    `gorm:"type:varchar(50);column:severity_level" json:"severity_level,omitempty"`
	ModelVersion string    `gorm:"type:varchar(100);column:model_version" json:"model_version,omitempty"`
	Indexed      bool      `gorm:"not null;default:false;column:indexed" json:"indexed"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ChunkRecord) TableName() string {
	return "document_chunks"
}
