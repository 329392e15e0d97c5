package docserver

import (
	"time"

	"gorm.io/datatypes"

	"github.com/blackwell-systems/libractl/internal/remote"
)

// DocumentRow is one document of one collection.
type DocumentRow struct {
	Collection string         `gorm:"primaryKey;size:64"`
	ID         string         `gorm:"primaryKey;size:128"`
	Version    int64          `gorm:"not null"`
	Seq        int64          `gorm:"not null;index"`
	Data       datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName pins the table name.
func (DocumentRow) TableName() string { return "documents" }

func (r DocumentRow) toDocument() remote.Document {
	return remote.Document{ID: r.ID, Version: r.Version, Data: []byte(r.Data)}
}
