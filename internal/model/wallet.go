package model

// CustodialWallet 托管钱包记录 (每用户一条)
//
// 私钥与助记词以信封加密形式落库, 各自带独立的 IV/认证标签。
// 加密盐在创建时生成一次, 除非钱包重加密, 否则不再变更。
type CustodialWallet struct {
	ID                  int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID              string `gorm:"column:user_id;type:varchar(64);uniqueIndex;not null" json:"user_id"`
	PublicAddress       string `gorm:"column:public_address;type:varchar(42);uniqueIndex;not null" json:"public_address"`
	EncryptedPrivateKey string `gorm:"column:encrypted_private_key;type:text" json:"-"`
	KeyIV               string `gorm:"column:key_iv;type:varchar(32)" json:"-"`
	KeyAuthTag          string `gorm:"column:key_auth_tag;type:varchar(32)" json:"-"`
	EncryptedMnemonic   string `gorm:"column:encrypted_mnemonic;type:text" json:"-"`
	MnemonicIV          string `gorm:"column:mnemonic_iv;type:varchar(32)" json:"-"`
	MnemonicAuthTag     string `gorm:"column:mnemonic_auth_tag;type:varchar(32)" json:"-"`
	EncryptionSalt      string `gorm:"column:encryption_salt;type:varchar(64)" json:"-"`
	ConnectedAt         int64  `gorm:"column:connected_at;type:bigint;not null" json:"connected_at"`
	CreatedAt           int64  `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
	UpdatedAt           int64  `gorm:"column:updated_at;type:bigint;not null" json:"updated_at"`
}

// TableName 返回表名
func (CustodialWallet) TableName() string {
	return "custodial_wallets"
}

// HasCiphertext 是否存在加密私钥
func (w *CustodialWallet) HasCiphertext() bool {
	return w.EncryptedPrivateKey != "" && w.KeyIV != "" && w.KeyAuthTag != "" && w.EncryptionSalt != ""
}

// IsLegacy 是否为遗留不一致状态 (有地址但无密文)
// 此状态必须显式迁移, 绝不能静默信任
func (w *CustodialWallet) IsLegacy() bool {
	return w.PublicAddress != "" && !w.HasCiphertext()
}

// WalletAuditAction 钱包审计动作
type WalletAuditAction string

const (
	WalletAuditActionCreate WalletAuditAction = "CREATE"
	WalletAuditActionUnlock WalletAuditAction = "UNLOCK"
	WalletAuditActionExport WalletAuditAction = "EXPORT"
	WalletAuditActionRekey  WalletAuditAction = "REKEY"
	WalletAuditActionRotate WalletAuditAction = "ROTATE"
	WalletAuditActionPay    WalletAuditAction = "PAY"
)

// WalletAuditLog 钱包操作审计日志 (仅追加)
type WalletAuditLog struct {
	ID            int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	AuditID       string            `gorm:"column:audit_id;type:varchar(64);uniqueIndex;not null" json:"audit_id"`
	UserID        string            `gorm:"column:user_id;type:varchar(64);index;not null" json:"user_id"`
	Action        WalletAuditAction `gorm:"column:action;type:varchar(20);index;not null" json:"action"`
	PublicAddress string            `gorm:"column:public_address;type:varchar(42)" json:"public_address"`
	Success       bool              `gorm:"column:success;type:boolean;not null" json:"success"`
	ErrorMessage  string            `gorm:"column:error_message;type:varchar(255)" json:"error_message"`
	CreatedAt     int64             `gorm:"column:created_at;type:bigint;not null" json:"created_at"`
}

// TableName 返回表名
func (WalletAuditLog) TableName() string {
	return "wallet_audit_logs"
}

// SecurityAssessment 钱包安全体检结果 (只读诊断, 不阻断任何功能)
type SecurityAssessment struct {
	PublicAddress string   `json:"public_address"`
	Score         int      `json:"score"`
	Issues        []string `json:"issues"`
	AssessedAt    int64    `json:"assessed_at"`
}
