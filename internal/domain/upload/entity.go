package upload

import "time"

// Attachment fields a file can be uploaded to.
const (
	FieldProfilePhoto = "profile_photo"
	FieldAttachment   = "attachment"
)

// Upload records where a stored file lives. FilePath is the storage name
// (user_<id>/<name>, possibly suffixed) and is unique per backend.
type Upload struct {
	ID           string    `gorm:"column:id;primaryKey" json:"id"`
	UserID       int64     `gorm:"column:user_id;not null;index" json:"user_id"`
	Field        string    `gorm:"column:field;not null;index" json:"field"`
	OriginalName string    `gorm:"column:original_name" json:"original_name"`
	FilePath     string    `gorm:"column:file_path;not null;uniqueIndex" json:"path"`
	FileURL      string    `gorm:"column:file_url" json:"url"`
	MimeType     string    `gorm:"column:mime_type" json:"mime_type"`
	Size         int64     `gorm:"column:size" json:"size"`
	Checksum     string    `gorm:"column:checksum" json:"checksum"`
	Storage      string    `gorm:"column:storage" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Upload) TableName() string { return "uploads" }
