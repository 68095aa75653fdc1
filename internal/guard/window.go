// Package guard provides window bucketing and key construction.
package guard

import (
	"strconv"
	"time"
)

// RateWindow identifies a fixed counting window.
type RateWindow string

const (
	WindowMinute RateWindow = "minute"
	WindowHour   RateWindow = "hour"
)

// Span returns the window duration.
func (w RateWindow) Span() time.Duration {
	switch w {
	case WindowHour:
		return time.Hour
	default:
		return time.Minute
	}
}

// BucketStart returns the epoch-aligned start of the bucket containing now.
// Buckets are fixed, not sliding: every instant inside one span maps to
// the same start, and starts are distinct across bucket boundaries.
func (w RateWindow) BucketStart(now time.Time) time.Time {
	span := w.Span().Milliseconds()
	ms := now.UnixMilli()
	return time.UnixMilli(ms - ms%span).UTC()
}

// BucketEnd returns the first instant after the bucket containing now.
func (w RateWindow) BucketEnd(now time.Time) time.Time {
	return w.BucketStart(now).Add(w.Span())
}

// Key namespaces. Counter, cost, violation, and block records all key
// off the same identity but live in independent namespaces with
// independent lifecycles.
const (
	countKeyPrefix     = "guard:count:"
	costKeyPrefix      = "guard:cost:"
	violationKeyPrefix = "guard:violations:"
	blockKeyPrefix     = "guard:block:"
)

func countKey(identity string, window RateWindow, now time.Time) string {
	return countKeyPrefix + bucketSuffix(identity, window, now)
}

func costKey(identity string, window RateWindow, now time.Time) string {
	return costKeyPrefix + bucketSuffix(identity, window, now)
}

func violationKey(identity string) string {
	return violationKeyPrefix + identity
}

func blockKey(identity string) string {
	return blockKeyPrefix + identity
}

func bucketSuffix(identity string, window RateWindow, now time.Time) string {
	start := window.BucketStart(now).UnixMilli()
	return string(window) + ":" + strconv.FormatInt(start, 10) + ":" + identity
}
