package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BatchTranslateJob maps batch_translate_jobs.
type BatchTranslateJob struct {
	ID            int64          `gorm:"column:id;primaryKey;autoIncrement"`
	JobUUID       string         `gorm:"column:job_uuid;size:36;not null;uniqueIndex"`
	ContentType   string         `gorm:"column:content_type;not null"`
	SourceLocale  string         `gorm:"column:source_locale;not null"`
	TargetLocale  string         `gorm:"column:target_locale;not null"`
	EntityIDs     datatypes.JSON `gorm:"column:entity_ids"`
	AutoPublish   bool           `gorm:"column:auto_publish;not null;default:false"`
	Status        string         `gorm:"column:status;not null;default:created"`
	Progress      float64        `gorm:"column:progress;not null;default:0"`
	FailureReason datatypes.JSON `gorm:"column:failure_reason"`
	CreatedAt     time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;not null"`
}

func (BatchTranslateJob) TableName() string { return "batch_translate_jobs" }

func (j *BatchTranslateJob) BeforeCreate(*gorm.DB) error {
	if j.JobUUID == "" {
		j.JobUUID = uuid.NewString()
	}
	return nil
}

// Entry maps entries. Localizations share ContentType and GroupID.
type Entry struct {
	ID          int64          `gorm:"column:id;primaryKey;autoIncrement"`
	EntryUUID   string         `gorm:"column:entry_uuid;size:36;not null;uniqueIndex"`
	ContentType string         `gorm:"column:content_type;not null;uniqueIndex:entries_group_locale_uidx,priority:1"`
	GroupID     string         `gorm:"column:group_id;size:36;not null;uniqueIndex:entries_group_locale_uidx,priority:2"`
	Locale      string         `gorm:"column:locale;not null;uniqueIndex:entries_group_locale_uidx,priority:3"`
	Data        datatypes.JSON `gorm:"column:data;not null"`
	PublishedAt *time.Time     `gorm:"column:published_at"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;not null"`
}

func (Entry) TableName() string { return "entries" }

func (e *Entry) BeforeCreate(*gorm.DB) error {
	if e.EntryUUID == "" {
		e.EntryUUID = uuid.NewString()
	}
	if e.GroupID == "" {
		e.GroupID = uuid.NewString()
	}
	return nil
}

// UpdatedEntry maps updated_entries: a localization group whose other locales are stale.
type UpdatedEntry struct {
	ID                 int64          `gorm:"column:id;primaryKey;autoIncrement"`
	UpdatedEntryUUID   string         `gorm:"column:updated_entry_uuid;size:36;not null;uniqueIndex"`
	ContentType        string         `gorm:"column:content_type;not null;uniqueIndex:updated_entries_group_uidx,priority:1"`
	GroupID            string         `gorm:"column:group_id;size:36;not null;uniqueIndex:updated_entries_group_uidx,priority:2"`
	LocalesWithUpdates datatypes.JSON `gorm:"column:locales_with_updates;not null"`
	CreatedAt          time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt          time.Time      `gorm:"column:updated_at;not null"`
}

func (UpdatedEntry) TableName() string { return "updated_entries" }

func (u *UpdatedEntry) BeforeCreate(*gorm.DB) error {
	if u.UpdatedEntryUUID == "" {
		u.UpdatedEntryUUID = uuid.NewString()
	}
	return nil
}

func autoMigrateModels() []any {
	return []any{
		&BatchTranslateJob{},
		&Entry{},
		&UpdatedEntry{},
	}
}
