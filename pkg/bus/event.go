package bus

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Event is an immutable record of one state change. ParentID links it to the event that caused it.
type Event struct {
	Tick      int64     `json:"tick"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	ID        string    `json:"event_id"`
	ParentID  string    `json:"parent_id,omitempty"`
}

func (e Event) HasParent() bool {
	return e.ParentID != ""
}

// TypeHash returns the first four alphabetic characters of the hex md5 of eventType, upper-cased.
func TypeHash(eventType string) string {
	sum := md5.Sum([]byte(eventType)) // #nosec G401
	hash := make([]byte, 0, 4)
	for _, c := range hex.EncodeToString(sum[:]) {
		if c >= 'a' && c <= 'f' {
			hash = append(hash, byte(c)-'a'+'A')
			if len(hash) == 4 {
				break
			}
		}
	}
	return string(hash)
}

func formatID(tick int64, typeHash string, sequence int) string {
	return fmt.Sprintf("%d-%s-%d", tick, typeHash, sequence)
}

// parseID splits an id produced by formatID. Foreign ids report ok=false.
func parseID(id string) (tick int64, typeHash string, sequence int, ok bool) {
	parts := strings.Split(id, "-")
	if len(parts) != 3 {
		return 0, "", 0, false
	}
	tick, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", 0, false
	}
	sequence, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, "", 0, false
	}
	return tick, parts[1], sequence, true
}
