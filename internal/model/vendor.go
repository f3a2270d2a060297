package model

// Vendor 商家
type Vendor struct {
	ID            int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	VendorID      string `gorm:"column:vendor_id;type:varchar(64);uniqueIndex;not null" json:"vendor_id"`
	Name          string `gorm:"column:name;type:varchar(128);not null" json:"name"`
	WalletAddress string `gorm:"column:wallet_address;type:varchar(42)" json:"wallet_address"`
	Verified      bool   `gorm:"column:verified;type:boolean;index;not null;default:false" json:"verified"`
	CreatedAt     int64  `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
	UpdatedAt     int64  `gorm:"column:updated_at;type:bigint;not null" json:"updated_at"`
}

// TableName 返回表名
func (Vendor) TableName() string {
	return "vendors"
}

// UserProfile 用户档案 (买家身份解析用)
type UserProfile struct {
	ID            int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        string `gorm:"column:user_id;type:varchar(64);uniqueIndex;not null" json:"user_id"`
	Email         string `gorm:"column:email;type:varchar(255);index" json:"email"`
	WalletAddress string `gorm:"column:wallet_address;type:varchar(42);index" json:"wallet_address"`
	CreatedAt     int64  `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
	UpdatedAt     int64  `gorm:"column:updated_at;type:bigint;not null" json:"updated_at"`
}

// TableName 返回表名
func (UserProfile) TableName() string {
	return "user_profiles"
}
