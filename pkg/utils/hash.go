package utils

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

// NewHashID builds an opaque per-fid share token: unix millis, the fid and a
// 9-character base36 suffix. Tokens are process-local and never persisted.
func NewHashID(fid string) string {
	suffix := strconv.FormatUint(rand.Uint64(), 36)
	if len(suffix) > 9 {
		suffix = suffix[:9]
	}
	return fmt.Sprintf("%d-%s-%s", time.Now().UnixMilli(), fid, suffix)
}
