//go:build windows

package config

// maps the unix spellings used in shared config files to their windows names
func mapEnvKey(key string) string {
	switch key {
	case "HOSTNAME":
		return "COMPUTERNAME"
	case "HOME":
		return "USERPROFILE"
	}
	return key
}
