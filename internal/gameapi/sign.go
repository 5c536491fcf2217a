package gameapi

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
)

// Sign hashes the request parameters sorted by key as k=v pairs joined with '&', followed by the salt.
// Any existing "sign" parameter is ignored.
func Sign(params map[string]string, salt string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "sign" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	b.WriteString(salt)

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
