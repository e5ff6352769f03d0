//go:build !unix

package store

import "os"

// Advisory locking is only implemented on unix; elsewhere the single-writer
// assumption applies.

func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
