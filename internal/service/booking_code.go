package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v3"
)

const codeAttempts = 10

// newBookingCode returns a short code such as BK-4821 that exists() does
// not know yet.  After codeAttempts collisions it falls back to a
// millisecond timestamp plus a random suffix, which is unique in practice
// even when many requests fall back in the same millisecond.
func newBookingCode(ctx context.Context, exists func(context.Context, string) (bool, error), now time.Time) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := shortCode()
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return fallbackCode(now), nil
}

func shortCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("BK-%d", 1000+n.Int64()), nil
}

func fallbackCode(now time.Time) string {
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return "BK-" + ts + "-" + shortuuid.New()[:6]
}
