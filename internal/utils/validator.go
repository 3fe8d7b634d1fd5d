package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxServerNameLen = 100
	MaxRoleNameLen   = 100
	MaxPanelNameLen  = 100
	InviteCodeLen    = 8
)

// ValidateName 验证名称（去除首尾空白后 1~max 个字符）
func ValidateName(name string, max int) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	return n >= 1 && n <= max
}

// ValidateInviteCode 验证邀请码格式（8位小写十六进制）
func ValidateInviteCode(code string) bool {
	if len(code) != InviteCodeLen {
		return false
	}
	for _, c := range code {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// GenerateInviteCode 生成 8 位随机邀请码
func GenerateInviteCode() string {
	buf := make([]byte, InviteCodeLen/2)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand 失败时退回 UUID
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:InviteCodeLen]
	}
	return hex.EncodeToString(buf)
}
