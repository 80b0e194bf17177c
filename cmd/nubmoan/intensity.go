package main

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrAssetPathTooLong is returned when the composed sound path does not fit
// in maxAssetPathLen.
var ErrAssetPathTooLong = errors.New("sound asset path too long")

// selectIntensity maps accumulated movement to a sound index in [0, maxFiles-1].
// One index step per stepSize units of movement, capped at the last file.
func selectIntensity(movement int64) int {
	if movement <= 0 {
		return 0
	}
	idx := movement / stepSize
	if idx >= maxFiles {
		return maxFiles - 1
	}
	return int(idx)
}

// assetPath returns the sound file for index: index 0 is file1.wav, etc.
func assetPath(dir string, index int) (string, error) {
	if index < 0 || index >= maxFiles {
		return "", fmt.Errorf("sound index %d out of range [0,%d]", index, maxFiles-1)
	}

	p := filepath.Join(dir, fmt.Sprintf("file%d.wav", index+1))

	// Leave room for the terminator the OS-level path buffer needs.
	if len(p) >= maxAssetPathLen {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrAssetPathTooLong, len(p), maxAssetPathLen-1)
	}
	return p, nil
}
