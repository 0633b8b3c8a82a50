package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NowUnixMilli returns current unix timestamp in milliseconds
func NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

// GenPairKey generates the unique key for a two-party conversation.
// Format: {min(userA,userB)}:{max(userA,userB)}, so the key is identical
// regardless of which side initiates.
func GenPairKey(userA, userB int64) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%d:%d", userA, userB)
}

// ParsePairKey splits a pair key back into the two participant ids.
func ParsePairKey(pairKey string) (int64, int64, bool) {
	idx := strings.IndexByte(pairKey, ':')
	if idx <= 0 || idx == len(pairKey)-1 {
		return 0, 0, false
	}
	a, errA := strconv.ParseInt(pairKey[:idx], 10, 64)
	b, errB := strconv.ParseInt(pairKey[idx+1:], 10, 64)
	if errA != nil || errB != nil {
		return 0, 0, false
	}
	return a, b, true
}
