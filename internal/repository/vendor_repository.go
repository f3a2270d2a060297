package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/venu-market/venu-chain/internal/model"
)

var (
	ErrVendorNotFound = errors.New("vendor not found")
	ErrUserNotFound   = errors.New("user not found")
)

// VendorRepository 商家仓储接口
type VendorRepository interface {
	GetByVendorID(ctx context.Context, vendorID string) (*model.Vendor, error)
	GetByVendorIDs(ctx context.Context, vendorIDs []string) (map[string]*model.Vendor, error)
}

// vendorRepository 商家仓储实现
type vendorRepository struct {
	*Repository
}

// NewVendorRepository 创建商家仓储
func NewVendorRepository(db *gorm.DB) VendorRepository {
	return &vendorRepository{
		Repository: NewRepository(db),
	}
}

func (r *vendorRepository) GetByVendorID(ctx context.Context, vendorID string) (*model.Vendor, error) {
	var vendor model.Vendor
	err := r.DB(ctx).Where("vendor_id = ?", vendorID).First(&vendor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVendorNotFound
	}
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *vendorRepository) GetByVendorIDs(ctx context.Context, vendorIDs []string) (map[string]*model.Vendor, error) {
	var vendors []*model.Vendor
	err := r.DB(ctx).Where("vendor_id IN ?", vendorIDs).Find(&vendors).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]*model.Vendor, len(vendors))
	for _, v := range vendors {
		result[v.VendorID] = v
	}
	return result, nil
}

// UserRepository 用户档案仓储接口
type UserRepository interface {
	GetByUserID(ctx context.Context, userID string) (*model.UserProfile, error)
	GetByWalletAddress(ctx context.Context, address string) (*model.UserProfile, error)
}

// userRepository 用户档案仓储实现
type userRepository struct {
	*Repository
}

// NewUserRepository 创建用户档案仓储
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{
		Repository: NewRepository(db),
	}
}

func (r *userRepository) GetByUserID(ctx context.Context, userID string) (*model.UserProfile, error) {
	var user model.UserProfile
	err := r.DB(ctx).Where("user_id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByWalletAddress(ctx context.Context, address string) (*model.UserProfile, error) {
	// 事件里的地址是 EIP-55 混合大小写, 档案里的写入方不保证大小写一致
	var user model.UserProfile
	err := r.DB(ctx).Where("lower(wallet_address) = lower(?)", address).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
