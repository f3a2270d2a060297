package model

// SyncCursor 同步游标 (每个被监听的合约地址一条)
//
// last_processed_block 单调不减; 批次失败时不推进。
type SyncCursor struct {
	ID                 int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ContractAddress    string `gorm:"column:contract_address;type:varchar(42);uniqueIndex;not null" json:"contract_address"`
	LastProcessedBlock int64  `gorm:"column:last_processed_block;type:bigint;not null;default:0" json:"last_processed_block"`
	CreatedAt          int64  `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
	UpdatedAt          int64  `gorm:"column:updated_at;type:bigint;not null" json:"updated_at"`
}

// TableName 返回表名
func (SyncCursor) TableName() string {
	return "chain_sync_cursors"
}
