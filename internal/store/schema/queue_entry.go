package schema

import "time"

// QueueEntry is a lightweight job descriptor for the single-flight refresh
// queue. At most one entry carries a non-null Hash at a time; that hash is
// the claim ticket for the in-flight job. Entries for other contracts queue
// with a null hash and are promoted FIFO (by id) when the active job
// finishes.
type QueueEntry struct {
	ID       uint64  `gorm:"column:id;primaryKey;autoIncrement"`
	Contract string  `gorm:"column:contract;not null"`
	Name     string  `gorm:"column:name;not null"`
	Hash     *string `gorm:"column:hash"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (QueueEntry) TableName() string {
	return "queue_entries"
}
