package version

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/ethereum/go-ethereum/params"
)

const fmtVersion = "v%v.%v.%v-%x (go-ethereum %s)"

var (
	// it is changed using ldflags.
	//  ex) -ldflags "... -X 'github.com/lendfork/lendfork/cmd/version.GitCommit=$(XXX)'"
	Version   string
	GitCommit string

	majorVer  uint64 = 0
	minorVer  uint64 = 1
	patchVer  uint64 = 0
	commitVer uint64 = 0
)

var reVersion = regexp.MustCompile(`v(\d+)\.(\d+)\.(\d+)`)

func init() {
	if err := parseVersions(Version, GitCommit); err != nil {
		panic(err)
	}
}

func parseVersions(versionStr, gitCommit string) error {
	if versionStr == "" {
		return nil
	}

	matches := reVersion.FindStringSubmatch(versionStr)
	if matches == nil {
		return fmt.Errorf("invalid version string: %v", versionStr)
	}
	majorVer, _ = strconv.ParseUint(matches[1], 10, 64)
	minorVer, _ = strconv.ParseUint(matches[2], 10, 64)
	patchVer, _ = strconv.ParseUint(matches[3], 10, 64)

	if gitCommit != "" {
		var err error
		commitVer, err = strconv.ParseUint(gitCommit, 16, 64)
		if err != nil {
			return fmt.Errorf("error: %v, invalid git commit: %v", err, gitCommit)
		}
	}
	return nil
}

// String reports the lendfork version and the go-ethereum release it
// talks to nodes with.
func String() string {
	return fmt.Sprintf(fmtVersion, majorVer, minorVer, patchVer, commitVer, params.Version)
}
