package model

import "time"

type HierarchyChange struct {
	ID            uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	OperationType string    `gorm:"column:operation_type;type:varchar(16);not null;index"`
	ParentSSCC    *string   `gorm:"column:parent_sscc;type:varchar(18);index"`
	NewSSCC       *string   `gorm:"column:new_sscc;type:varchar(18);index"`
	OldSSCC       *string   `gorm:"column:old_sscc;type:varchar(18);index"`
	ActorUserID   uint64    `gorm:"column:actor_user_id;not null;index"`
	ActorType     string    `gorm:"column:actor_type;type:text;not null;default:''"`
	ChangeDate    time.Time `gorm:"column:change_date;not null;index"`
	Notes         string    `gorm:"column:notes;type:text;not null;default:''"`
}

func (HierarchyChange) TableName() string {
	return "hierarchy_changes"
}
