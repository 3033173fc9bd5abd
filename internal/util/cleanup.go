package util

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
)

// SetupInterruptHandler cancels ctx on the first interrupt so the run
// can wind down, report, and clean up. A second interrupt exits hard.
func SetupInterruptHandler(cancel context.CancelFunc) {
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		fmt.Fprintln(os.Stderr, "\nInterrupt received, finishing in-flight pages. Press again to quit now.")
		cancel()

		<-sig
		fmt.Fprintln(os.Stderr, "\nExiting.")
		os.Exit(1)
	}()
}

// CleanupPartFiles removes the .part leftovers an interrupted run may
// have abandoned anywhere under dir.
func CleanupPartFiles(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}

		if strings.HasSuffix(d.Name(), ".part") {
			if rerr := os.Remove(path); rerr == nil {
				fmt.Printf("Removed %s\n", path)
			}
		}

		return nil
	})
}

// RemoveIfEmpty drops dir when nothing was written into it.
func RemoveIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	if len(entries) == 0 {
		if err := os.Remove(dir); err == nil {
			fmt.Printf("Removed empty output folder: %s\n", dir)
		}
	}
}
