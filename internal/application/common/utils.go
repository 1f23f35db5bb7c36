package common

import (
	"context"
	"fmt"
	"time"
)

// Version заполняется при сборке: -ldflags "-X integrations/internal/application/common.Version=..."
var Version = "0.1.0"

// PgInterval длительность в формате interval для postgres
func PgInterval(d time.Duration) string {
	sec := int64(d / time.Second)
	return fmt.Sprintf("%d seconds", sec)
}

func SleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Truncate обрезает по рунам, добавляя suffix если строка была длиннее max
func Truncate(s string, max int, suffix string) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + suffix
}
