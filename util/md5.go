package util

import (
	"crypto/md5"
	"encoding/hex"
)

// MD5 hex md5 digest of str, used as the key of a job instance
func MD5(str string) string {
	sum := md5.Sum([]byte(str))
	return hex.EncodeToString(sum[:])
}
