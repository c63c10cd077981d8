// Package hash 计算文档内容指纹，作为所有下游产物（原文、抽取结果、向量命名空间）的幂等键。
package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// Size 是指纹的十六进制字符长度。
const Size = sha256.Size * 2

// Fingerprint 返回 data 的 SHA-256 十六进制摘要。与文件名、调用顺序无关。
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Valid 判断 s 是否是一个格式正确的指纹。
func Valid(s string) bool {
	if len(s) != Size {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
