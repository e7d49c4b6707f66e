//go:build windows

package cache

import (
	"errors"
	"os"
)

var errNoSharedRegion = errors.New("cache: shared regions are not supported on windows")

type fileLock struct{ nopLocker }

func newFileLock(*os.File) *fileLock { return &fileLock{} }

func mapFile(*os.File, int, bool) ([]byte, error) { return nil, errNoSharedRegion }

func unmapFile([]byte) error { return nil }
