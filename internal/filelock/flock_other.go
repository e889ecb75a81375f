//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly || windows)

package filelock

import "os"

// No advisory locking here; only in-process exclusion applies.

func tryLockFile(*os.File) (bool, error) { return true, nil }

func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
