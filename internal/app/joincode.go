package app

import (
	"math/rand"
	"sync"
	"time"
)

// joinCodeAlphabet is a 32-symbol set with visually ambiguous characters
// removed (no I, O, 0, 1).
const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const joinCodeLength = 6

var (
	codeMu  sync.Mutex
	codeRnd = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// NewJoinCode generates a 6-character room code. Uniqueness is enforced by
// the store's constraint, not here.
func NewJoinCode() string {
	codeMu.Lock()
	defer codeMu.Unlock()
	buf := make([]byte, joinCodeLength)
	for i := range buf {
		buf[i] = joinCodeAlphabet[codeRnd.Intn(len(joinCodeAlphabet))]
	}
	return string(buf)
}
