// Package id hands out run identifiers. They are ULIDs, so sorting them as
// strings sorts runs by start time.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator is safe for concurrent use. IDs from one Generator that share a
// millisecond still increase.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

func NewGenerator() *Generator {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)}
}

// At returns an ID stamped with t.
func (g *Generator) At(t time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t.UTC()), g.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Time recovers the timestamp encoded in a run ID.
func Time(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()).UTC(), nil
}
