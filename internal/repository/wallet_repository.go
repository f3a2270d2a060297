package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/venu-market/venu-chain/internal/model"
)

var (
	ErrWalletNotFound  = errors.New("wallet not found")
	ErrDuplicateWallet = errors.New("duplicate wallet")
)

// WalletRepository 托管钱包仓储接口
type WalletRepository interface {
	Create(ctx context.Context, wallet *model.CustodialWallet) error
	GetByUserID(ctx context.Context, userID string) (*model.CustodialWallet, error)
	GetByAddress(ctx context.Context, address string) (*model.CustodialWallet, error)
	ExistsByAddress(ctx context.Context, address string) (bool, error)

	// ReplaceEncryption 整体替换加密材料 (重加密/遗留迁移)
	// 地址、密文、IV/标签、盐必须在一次写入中原子替换
	ReplaceEncryption(ctx context.Context, wallet *model.CustodialWallet) error

	// ListLegacy 列出遗留不一致记录 (有地址无密文)
	ListLegacy(ctx context.Context, limit int) ([]*model.CustodialWallet, error)
}

// walletRepository 托管钱包仓储实现
type walletRepository struct {
	*Repository
}

// NewWalletRepository 创建托管钱包仓储
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{
		Repository: NewRepository(db),
	}
}

func (r *walletRepository) Create(ctx context.Context, wallet *model.CustodialWallet) error {
	now := time.Now().UnixMilli()
	wallet.CreatedAt = now
	wallet.UpdatedAt = now
	if wallet.ConnectedAt == 0 {
		wallet.ConnectedAt = now
	}

	err := r.DB(ctx).Create(wallet).Error
	if err != nil && isDuplicateKeyError(err) {
		return ErrDuplicateWallet
	}
	return err
}

func (r *walletRepository) GetByUserID(ctx context.Context, userID string) (*model.CustodialWallet, error) {
	var wallet model.CustodialWallet
	err := r.DB(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *walletRepository) GetByAddress(ctx context.Context, address string) (*model.CustodialWallet, error) {
	var wallet model.CustodialWallet
	err := r.DB(ctx).Where("public_address = ?", address).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *walletRepository) ExistsByAddress(ctx context.Context, address string) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&model.CustodialWallet{}).
		Where("public_address = ?", address).
		Count(&count).Error
	return count > 0, err
}

func (r *walletRepository) ReplaceEncryption(ctx context.Context, wallet *model.CustodialWallet) error {
	now := time.Now().UnixMilli()
	result := r.DB(ctx).Model(&model.CustodialWallet{}).
		Where("user_id = ?", wallet.UserID).
		Updates(map[string]interface{}{
			"public_address":        wallet.PublicAddress,
			"encrypted_private_key": wallet.EncryptedPrivateKey,
			"key_iv":                wallet.KeyIV,
			"key_auth_tag":          wallet.KeyAuthTag,
			"encrypted_mnemonic":    wallet.EncryptedMnemonic,
			"mnemonic_iv":           wallet.MnemonicIV,
			"mnemonic_auth_tag":     wallet.MnemonicAuthTag,
			"encryption_salt":       wallet.EncryptionSalt,
			"connected_at":          wallet.ConnectedAt,
			"updated_at":            now,
		})
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return ErrDuplicateWallet
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func (r *walletRepository) ListLegacy(ctx context.Context, limit int) ([]*model.CustodialWallet, error) {
	var wallets []*model.CustodialWallet
	err := r.DB(ctx).
		Where("public_address <> '' AND (encrypted_private_key = '' OR encrypted_private_key IS NULL)").
		Order("id ASC").
		Limit(limit).
		Find(&wallets).Error
	return wallets, err
}
