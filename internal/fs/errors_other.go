//go:build !windows

package fs

func isPlatformTransient(err error) bool {
	return false
}
