package service

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/venu-market/venu-chain/internal/contract"
	"github.com/venu-market/venu-chain/internal/crypto"
	"github.com/venu-market/venu-chain/internal/kafka"
	"github.com/venu-market/venu-chain/internal/logger"
	"github.com/venu-market/venu-chain/internal/metrics"
	"github.com/venu-market/venu-chain/internal/model"
	"github.com/venu-market/venu-chain/internal/repository"
)

var (
	// ErrWalletExists 用户已有托管钱包
	ErrWalletExists = errors.New("wallet already exists for user")
	// ErrWalletNotFound 钱包不存在
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrWalletUnlockFailed 解锁失败
	// 对外只暴露这一个错误, 不区分密文损坏/身份属性不匹配/记录缺字段,
	// 避免向调用方泄露密文状态。
	ErrWalletUnlockFailed = errors.New("wallet unlock failed")
	// ErrLegacyWallet 遗留钱包无密文, 需要先轮换
	ErrLegacyWallet = errors.New("legacy wallet has no ciphertext, rotation required")
	// ErrNoMnemonicBackup 钱包没有助记词备份
	ErrNoMnemonicBackup = errors.New("wallet has no mnemonic backup")
	// ErrPaymentsDisabled 未配置链上支付通道
	ErrPaymentsDisabled = errors.New("on-chain payments are not configured")
	// ErrInvalidPaymentAmount 支付金额非法
	ErrInvalidPaymentAmount = errors.New("payment amount must be positive")
)

// ChainSender 提交签名支付交易
type ChainSender interface {
	SendPayment(ctx context.Context, key *ecdsa.PrivateKey, from, to common.Address, value *big.Int, data []byte) (common.Hash, error)
}

// WalletExport 钱包导出结果
type WalletExport struct {
	PublicAddress string `json:"public_address"`
	PrivateKeyHex string `json:"private_key_hex"`
	Mnemonic      string `json:"mnemonic,omitempty"`
}

// CustodyService 托管钱包服务
//
// 私钥只在调用栈内以明文存在, 加密密钥每次都从用户身份属性现场派生,
// 服务不持有、不缓存任何密钥材料。
type CustodyService struct {
	walletRepo repository.WalletRepository
	auditRepo  repository.AuditRepository
	publisher  kafka.EventPublisher

	chain  ChainSender
	market *contract.Marketplace
}

// NewCustodyService 创建托管钱包服务
func NewCustodyService(
	walletRepo repository.WalletRepository,
	auditRepo repository.AuditRepository,
	publisher kafka.EventPublisher,
) *CustodyService {
	return &CustodyService{
		walletRepo: walletRepo,
		auditRepo:  auditRepo,
		publisher:  publisher,
	}
}

// SetPaymentChannel 配置链上支付通道
func (s *CustodyService) SetPaymentChannel(chain ChainSender, market *contract.Marketplace) {
	s.chain = chain
	s.market = market
}

// PayOrder 用托管私钥支付链上订单
//
// 解锁得到的私钥只在本调用栈内存在, 交易提交后立即出栈。
func (s *CustodyService) PayOrder(ctx context.Context, userID, identityAttr string, orderID uint64, amount *big.Int) (common.Hash, error) {
	if s.chain == nil || s.market == nil {
		return common.Hash{}, ErrPaymentsDisabled
	}
	if amount == nil || amount.Sign() <= 0 {
		return common.Hash{}, ErrInvalidPaymentAmount
	}

	privateKey, err := s.UnlockWallet(ctx, userID, identityAttr)
	if err != nil {
		return common.Hash{}, err
	}
	from := ethcrypto.PubkeyToAddress(privateKey.PublicKey)

	data, err := s.market.PayOrderData(orderID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("build payOrder calldata: %w", err)
	}

	txHash, err := s.chain.SendPayment(ctx, privateKey, from, s.market.Address(), amount, data)
	if err != nil {
		s.audit(ctx, userID, model.WalletAuditActionPay, from.Hex(), false, "send failed")
		logger.Error("order payment failed",
			zap.String("user_id", userID),
			zap.Uint64("order_id", orderID),
			zap.Error(err))
		return common.Hash{}, err
	}

	s.audit(ctx, userID, model.WalletAuditActionPay, from.Hex(), true, "")

	logger.Info("order payment submitted",
		zap.String("user_id", userID),
		zap.Uint64("order_id", orderID),
		zap.String("tx_hash", txHash.Hex()))

	return txHash, nil
}

// CreateWallet 为用户创建托管钱包
//
// mnemonic 可选 (客户端生成后上传备份); 传空则只托管私钥。
func (s *CustodyService) CreateWallet(ctx context.Context, userID, identityAttr, mnemonic string) (*model.CustodialWallet, error) {
	if _, err := s.walletRepo.GetByUserID(ctx, userID); err == nil {
		return nil, ErrWalletExists
	} else if !errors.Is(err, repository.ErrWalletNotFound) {
		return nil, err
	}

	privateKey, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key failed: %w", err)
	}
	address := ethcrypto.PubkeyToAddress(privateKey.PublicKey).Hex()

	salt, err := crypto.NewSalt()
	if err != nil {
		return nil, err
	}
	derivedKey := crypto.DeriveKey(userID, identityAttr, salt)

	keyCiphertext, keyIV, keyTag, err := crypto.Encrypt(ethcrypto.FromECDSA(privateKey), derivedKey)
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	wallet := &model.CustodialWallet{
		UserID:              userID,
		PublicAddress:       address,
		EncryptedPrivateKey: hex.EncodeToString(keyCiphertext),
		KeyIV:               hex.EncodeToString(keyIV),
		KeyAuthTag:          hex.EncodeToString(keyTag),
		EncryptionSalt:      hex.EncodeToString(salt),
		ConnectedAt:         now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if mnemonic != "" {
		mnemonicCiphertext, mnemonicIV, mnemonicTag, err := crypto.Encrypt([]byte(mnemonic), derivedKey)
		if err != nil {
			return nil, err
		}
		wallet.EncryptedMnemonic = hex.EncodeToString(mnemonicCiphertext)
		wallet.MnemonicIV = hex.EncodeToString(mnemonicIV)
		wallet.MnemonicAuthTag = hex.EncodeToString(mnemonicTag)
	}

	if err := s.walletRepo.Create(ctx, wallet); err != nil {
		if errors.Is(err, repository.ErrDuplicateWallet) {
			return nil, ErrWalletExists
		}
		return nil, err
	}

	s.audit(ctx, userID, model.WalletAuditActionCreate, address, true, "")

	logger.Info("custodial wallet created",
		zap.String("user_id", userID),
		zap.String("address", address))

	return wallet, nil
}

// UnlockWallet 解锁托管钱包, 返回私钥
func (s *CustodyService) UnlockWallet(ctx context.Context, userID, identityAttr string) (*ecdsa.PrivateKey, error) {
	start := time.Now()
	defer func() {
		metrics.WalletUnlockDuration.Observe(time.Since(start).Seconds())
	}()

	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}

	if wallet.IsLegacy() {
		s.audit(ctx, userID, model.WalletAuditActionUnlock, wallet.PublicAddress, false, "legacy wallet")
		return nil, ErrLegacyWallet
	}

	keyBytes, err := s.decryptField(wallet, identityAttr,
		wallet.EncryptedPrivateKey, wallet.KeyIV, wallet.KeyAuthTag)
	if err != nil {
		s.audit(ctx, userID, model.WalletAuditActionUnlock, wallet.PublicAddress, false, "decrypt failed")
		logger.Warn("wallet unlock failed",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, ErrWalletUnlockFailed
	}

	privateKey, err := ethcrypto.ToECDSA(keyBytes)
	if err != nil {
		s.audit(ctx, userID, model.WalletAuditActionUnlock, wallet.PublicAddress, false, "invalid key material")
		return nil, ErrWalletUnlockFailed
	}

	// 明文必须能还原出落库地址
	if ethcrypto.PubkeyToAddress(privateKey.PublicKey).Hex() != wallet.PublicAddress {
		s.audit(ctx, userID, model.WalletAuditActionUnlock, wallet.PublicAddress, false, "address mismatch")
		return nil, ErrWalletUnlockFailed
	}

	s.audit(ctx, userID, model.WalletAuditActionUnlock, wallet.PublicAddress, true, "")

	return privateKey, nil
}

// ExportWallet 导出私钥与助记词备份
//
// 导出是高危操作, 成功与失败都写审计日志并发送风控消息。
func (s *CustodyService) ExportWallet(ctx context.Context, userID, identityAttr string) (*WalletExport, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}

	if wallet.IsLegacy() {
		s.audit(ctx, userID, model.WalletAuditActionExport, wallet.PublicAddress, false, "legacy wallet")
		return nil, ErrLegacyWallet
	}

	keyBytes, err := s.decryptField(wallet, identityAttr,
		wallet.EncryptedPrivateKey, wallet.KeyIV, wallet.KeyAuthTag)
	if err != nil {
		s.audit(ctx, userID, model.WalletAuditActionExport, wallet.PublicAddress, false, "decrypt failed")
		return nil, ErrWalletUnlockFailed
	}

	export := &WalletExport{
		PublicAddress: wallet.PublicAddress,
		PrivateKeyHex: hex.EncodeToString(keyBytes),
	}

	if wallet.EncryptedMnemonic != "" {
		mnemonicBytes, err := s.decryptField(wallet, identityAttr,
			wallet.EncryptedMnemonic, wallet.MnemonicIV, wallet.MnemonicAuthTag)
		if err != nil {
			s.audit(ctx, userID, model.WalletAuditActionExport, wallet.PublicAddress, false, "mnemonic decrypt failed")
			return nil, ErrWalletUnlockFailed
		}
		export.Mnemonic = string(mnemonicBytes)
	}

	s.audit(ctx, userID, model.WalletAuditActionExport, wallet.PublicAddress, true, "")

	logger.Info("wallet exported",
		zap.String("user_id", userID),
		zap.String("address", wallet.PublicAddress))

	return export, nil
}

// RekeyWallet 身份属性变更后重加密
//
// 用旧属性解锁, 生成新盐并用新属性重新加密, 一次写入替换全部加密材料。
func (s *CustodyService) RekeyWallet(ctx context.Context, userID, oldIdentityAttr, newIdentityAttr string) error {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return ErrWalletNotFound
		}
		return err
	}

	if wallet.IsLegacy() {
		return ErrLegacyWallet
	}

	keyBytes, err := s.decryptField(wallet, oldIdentityAttr,
		wallet.EncryptedPrivateKey, wallet.KeyIV, wallet.KeyAuthTag)
	if err != nil {
		s.audit(ctx, userID, model.WalletAuditActionRekey, wallet.PublicAddress, false, "decrypt failed")
		return ErrWalletUnlockFailed
	}

	var mnemonicBytes []byte
	if wallet.EncryptedMnemonic != "" {
		mnemonicBytes, err = s.decryptField(wallet, oldIdentityAttr,
			wallet.EncryptedMnemonic, wallet.MnemonicIV, wallet.MnemonicAuthTag)
		if err != nil {
			s.audit(ctx, userID, model.WalletAuditActionRekey, wallet.PublicAddress, false, "mnemonic decrypt failed")
			return ErrWalletUnlockFailed
		}
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		return err
	}
	newKey := crypto.DeriveKey(userID, newIdentityAttr, salt)

	keyCiphertext, keyIV, keyTag, err := crypto.Encrypt(keyBytes, newKey)
	if err != nil {
		return err
	}

	updated := &model.CustodialWallet{
		UserID:              userID,
		PublicAddress:       wallet.PublicAddress,
		EncryptedPrivateKey: hex.EncodeToString(keyCiphertext),
		KeyIV:               hex.EncodeToString(keyIV),
		KeyAuthTag:          hex.EncodeToString(keyTag),
		EncryptionSalt:      hex.EncodeToString(salt),
	}

	if mnemonicBytes != nil {
		mnemonicCiphertext, mnemonicIV, mnemonicTag, err := crypto.Encrypt(mnemonicBytes, newKey)
		if err != nil {
			return err
		}
		updated.EncryptedMnemonic = hex.EncodeToString(mnemonicCiphertext)
		updated.MnemonicIV = hex.EncodeToString(mnemonicIV)
		updated.MnemonicAuthTag = hex.EncodeToString(mnemonicTag)
	}

	if err := s.walletRepo.ReplaceEncryption(ctx, updated); err != nil {
		return err
	}

	s.audit(ctx, userID, model.WalletAuditActionRekey, wallet.PublicAddress, true, "")

	logger.Info("wallet rekeyed", zap.String("user_id", userID))

	return nil
}

// RotateLegacyWallet 轮换遗留钱包
//
// 遗留记录只有地址没有密文, 旧私钥已不可得, 只能生成全新密钥对并替换地址。
func (s *CustodyService) RotateLegacyWallet(ctx context.Context, userID, identityAttr string) (*model.CustodialWallet, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}

	if !wallet.IsLegacy() {
		return wallet, nil
	}

	privateKey, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key failed: %w", err)
	}
	newAddress := ethcrypto.PubkeyToAddress(privateKey.PublicKey).Hex()

	salt, err := crypto.NewSalt()
	if err != nil {
		return nil, err
	}
	derivedKey := crypto.DeriveKey(userID, identityAttr, salt)

	keyCiphertext, keyIV, keyTag, err := crypto.Encrypt(ethcrypto.FromECDSA(privateKey), derivedKey)
	if err != nil {
		return nil, err
	}

	oldAddress := wallet.PublicAddress
	updated := &model.CustodialWallet{
		UserID:              userID,
		PublicAddress:       newAddress,
		EncryptedPrivateKey: hex.EncodeToString(keyCiphertext),
		KeyIV:               hex.EncodeToString(keyIV),
		KeyAuthTag:          hex.EncodeToString(keyTag),
		EncryptionSalt:      hex.EncodeToString(salt),
	}

	if err := s.walletRepo.ReplaceEncryption(ctx, updated); err != nil {
		return nil, err
	}

	s.audit(ctx, userID, model.WalletAuditActionRotate, newAddress, true, "")

	logger.Warn("legacy wallet rotated",
		zap.String("user_id", userID),
		zap.String("old_address", oldAddress),
		zap.String("new_address", newAddress))

	return s.walletRepo.GetByUserID(ctx, userID)
}

// AssessSecurity 钱包安全体检
//
// 只读诊断, 不修改任何状态, 不阻断任何功能。
func (s *CustodyService) AssessSecurity(ctx context.Context, userID string) (*model.SecurityAssessment, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}

	assessment := &model.SecurityAssessment{
		PublicAddress: wallet.PublicAddress,
		Score:         100,
		Issues:        []string{},
		AssessedAt:    time.Now().UnixMilli(),
	}

	if wallet.IsLegacy() {
		assessment.Score -= 60
		assessment.Issues = append(assessment.Issues, "wallet predates envelope encryption, rotation required")
	}
	if !wallet.IsLegacy() && wallet.EncryptedMnemonic == "" {
		assessment.Score -= 20
		assessment.Issues = append(assessment.Issues, "no mnemonic backup on file")
	}
	if wallet.EncryptionSalt == "" && !wallet.IsLegacy() {
		assessment.Score -= 30
		assessment.Issues = append(assessment.Issues, "missing encryption salt")
	}

	if assessment.Score < 0 {
		assessment.Score = 0
	}

	return assessment, nil
}

// decryptField 用身份属性派生的密钥解密单个字段
func (s *CustodyService) decryptField(wallet *model.CustodialWallet, identityAttr, ciphertextHex, ivHex, tagHex string) ([]byte, error) {
	salt, err := hex.DecodeString(wallet.EncryptionSalt)
	if err != nil {
		return nil, err
	}
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return nil, err
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return nil, err
	}
	tag, err := hex.DecodeString(tagHex)
	if err != nil {
		return nil, err
	}

	derivedKey := crypto.DeriveKey(wallet.UserID, identityAttr, salt)
	return crypto.Decrypt(ciphertext, derivedKey, iv, tag)
}

// audit 写审计日志并发送风控消息, 失败只记日志不阻断主流程
func (s *CustodyService) audit(ctx context.Context, userID string, action model.WalletAuditAction, address string, success bool, errMsg string) {
	metrics.RecordWalletOp(string(action), success)

	entry := &model.WalletAuditLog{
		AuditID:       uuid.New().String(),
		UserID:        userID,
		Action:        action,
		PublicAddress: address,
		Success:       success,
		ErrorMessage:  errMsg,
		CreatedAt:     time.Now().UnixMilli(),
	}

	if err := s.auditRepo.Create(ctx, entry); err != nil {
		logger.Error("failed to write wallet audit log",
			zap.String("user_id", userID),
			zap.String("action", string(action)),
			zap.Error(err))
	}

	if s.publisher == nil {
		return
	}
	msg := &kafka.WalletAuditMessage{
		UserID:    userID,
		Action:    string(action),
		Address:   address,
		Timestamp: entry.CreatedAt,
	}
	if err := s.publisher.PublishWalletAudit(ctx, msg); err != nil {
		logger.Warn("failed to publish wallet audit message",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}
