package guard

import (
	"testing"
	"time"
)

func TestBucketStartAlignment(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 5, 1, 10, 15, 42, 123e6, time.UTC)
	start := WindowMinute.BucketStart(base)
	if got, want := start, time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("minute bucket start = %v, want %v", got, want)
	}
	if got, want := WindowHour.BucketStart(base), time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("hour bucket start = %v, want %v", got, want)
	}
}

func TestBucketStartStableWithinSpan(t *testing.T) {
	t.Parallel()

	early := time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC)
	late := early.Add(59*time.Second + 999*time.Millisecond)
	if !WindowMinute.BucketStart(early).Equal(WindowMinute.BucketStart(late)) {
		t.Fatalf("instants inside one span must share a bucket start")
	}
	next := early.Add(time.Minute)
	if WindowMinute.BucketStart(early).Equal(WindowMinute.BucketStart(next)) {
		t.Fatalf("adjacent buckets must have distinct starts")
	}
}

func TestBucketEnd(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 5, 1, 10, 15, 30, 0, time.UTC)
	if got, want := WindowMinute.BucketEnd(base), time.Date(2024, 5, 1, 10, 16, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("minute bucket end = %v, want %v", got, want)
	}
}

func TestKeyNamespaces(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 5, 1, 10, 15, 30, 0, time.UTC)
	count := countKey("1.2.3.4", WindowMinute, base)
	cost := costKey("1.2.3.4", WindowMinute, base)
	if count == cost {
		t.Fatalf("count and cost keys must differ: %q", count)
	}
	if violationKey("1.2.3.4") == blockKey("1.2.3.4") {
		t.Fatalf("violation and block keys must differ")
	}
	if countKey("1.2.3.4", WindowMinute, base) == countKey("1.2.3.4", WindowHour, base) {
		t.Fatalf("windows must not share counter keys")
	}
	if countKey("1.2.3.4", WindowMinute, base) == countKey("5.6.7.8", WindowMinute, base) {
		t.Fatalf("identities must not share counter keys")
	}
}
