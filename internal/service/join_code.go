package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	joinCodeLength   = 6
	joinCodeAttempts = 8
)

// newJoinCode returns a random code over [A-Z0-9].
func newJoinCode() (string, error) {
	buf := make([]byte, joinCodeLength)
	max := big.NewInt(int64(len(joinCodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		buf[i] = joinCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// uniqueJoinCode draws codes until one is not used by an active session.
// The partial unique index on active codes still guards the insert itself.
func uniqueJoinCode(ctx context.Context, store SessionStore, gen func() (string, error)) (string, error) {
	for i := 0; i < joinCodeAttempts; i++ {
		code, err := gen()
		if err != nil {
			return "", err
		}
		inUse, err := store.CodeInUse(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code: %w", err)
		}
		if !inUse {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: could not allocate a free join code", ErrConflict)
}
