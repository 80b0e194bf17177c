package main

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

// TestSelectIntensity tests step bucketing and clamping
func TestSelectIntensity(t *testing.T) {
	cases := []struct {
		movement int64
		want     int
	}{
		{0, 0},
		{1, 0},
		{99, 0},
		{100, 1},
		{120, 1},
		{199, 1},
		{200, 2},
		{900, 9},
		{999, 9},
		{1000, 9},
		{5000, 9},
	}

	for _, c := range cases {
		if got := selectIntensity(c.movement); got != c.want {
			t.Errorf("selectIntensity(%d) = %d, want %d", c.movement, got, c.want)
		}
	}
}

// TestSelectIntensity_Bounds tests that every input lands inside the file range
func TestSelectIntensity_Bounds(t *testing.T) {
	for m := int64(0); m < 3000; m += 7 {
		idx := selectIntensity(m)
		if idx < 0 || idx > maxFiles-1 {
			t.Fatalf("selectIntensity(%d) = %d out of range", m, idx)
		}
	}
}

// TestAssetPath tests the numbered file naming
func TestAssetPath(t *testing.T) {
	dir := "/opt/sounds"

	p, err := assetPath(dir, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(dir, "file1.wav"); p != want {
		t.Errorf("expected %q, got %q", want, p)
	}

	p, err = assetPath(dir, maxFiles-1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(dir, "file10.wav"); p != want {
		t.Errorf("expected %q, got %q", want, p)
	}
}

// TestAssetPath_TooLong tests the path length limit
func TestAssetPath_TooLong(t *testing.T) {
	dir := "/" + strings.Repeat("a", maxAssetPathLen)

	_, err := assetPath(dir, 3)
	if err == nil {
		t.Fatalf("expected error for long path")
	}
	if !errors.Is(err, ErrAssetPathTooLong) {
		t.Errorf("expected ErrAssetPathTooLong, got %v", err)
	}
}

// TestAssetPath_LengthBoundary tests the exact limit
func TestAssetPath_LengthBoundary(t *testing.T) {
	suffix := "/file1.wav"

	// Longest accepted path is maxAssetPathLen-1 bytes.
	okDir := "/" + strings.Repeat("d", maxAssetPathLen-1-len(suffix)-1)
	p, err := assetPath(okDir, 0)
	if err != nil {
		t.Fatalf("expected path of %d bytes to be accepted: %v", len(okDir)+len(suffix), err)
	}
	if len(p) != maxAssetPathLen-1 {
		t.Fatalf("expected len %d, got %d", maxAssetPathLen-1, len(p))
	}

	badDir := okDir + "d"
	if _, err := assetPath(badDir, 0); !errors.Is(err, ErrAssetPathTooLong) {
		t.Errorf("expected ErrAssetPathTooLong at %d bytes, got %v", maxAssetPathLen, err)
	}
}

// TestAssetPath_IndexOutOfRange tests indexes outside file1..file10
func TestAssetPath_IndexOutOfRange(t *testing.T) {
	if _, err := assetPath("/x", -1); err == nil {
		t.Errorf("expected error for negative index")
	}
	if _, err := assetPath("/x", maxFiles); err == nil {
		t.Errorf("expected error for index == maxFiles")
	}
}
