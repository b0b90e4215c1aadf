package config

import zxcvbn "github.com/ccojocar/zxcvbn-go"

const weakKeyScoreThreshold = 3

// IsWeakKey returns whether the signing key is considered weak. Empty keys
// are rejected by validation before this check runs, so "" reports not weak.
func IsWeakKey(key string) bool {
	if key == "" {
		return false
	}
	result := zxcvbn.PasswordStrength(key, nil)
	return result.Score < weakKeyScoreThreshold
}
