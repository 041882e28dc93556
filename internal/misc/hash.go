package misc

import (
	"crypto/sha256"
	"encoding/hex"
)

// SumSHA256 signs a payload for the HashSHA256 header: hex(sha256(value || key)).
func SumSHA256(value []byte, key string) string {
	h := sha256.New()
	h.Write(value)
	h.Write([]byte(key))
	return hex.EncodeToString(h.Sum(nil))
}
