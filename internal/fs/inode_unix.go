//go:build unix

package fs

import (
	"os"
	"syscall"
)

// inodeOf lets ReadStable notice a save that was replaced by rename while it
// was being read.
func inodeOf(info os.FileInfo) uint64 {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}
	return st.Ino
}
