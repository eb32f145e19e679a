package libs

import (
	"os"
	"path/filepath"
	"strings"
)

func GetHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// ExpandPath resolves a leading "~" to the user's home directory.
func ExpandPath(p string) string {
	if p == "~" {
		return GetHome()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(GetHome(), p[2:])
	}
	return p
}
