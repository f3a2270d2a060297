package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

// KDFIterations PBKDF2 迭代次数
// 故意偏高, 提高盐+密文泄露后的暴力破解成本
const KDFIterations = 120_000

// DeriveKey 按 (userID, 身份属性, 盐) 派生对称密钥
//
// 确定性: 相同输入永远得到相同密钥, 因此密钥本身不落库。
// identityAttr 必须是合法用户经正常认证后总能重新提供的稳定身份属性
// (如规范化后的身份声明), 绝不能是私钥本身; 属性变更需走钱包重加密流程。
func DeriveKey(userID, identityAttr string, salt []byte) []byte {
	secret := userID + ":" + identityAttr
	return pbkdf2.Key([]byte(secret), salt, KDFIterations, KeySize, sha256.New)
}
