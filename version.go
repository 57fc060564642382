package toolbox

import (
	_ "embed"
	"strings"

	"github.com/aretw0/toolbox/pkg/mcpclient"
)

//go:embed VERSION
var rawVersion string

// Version is the released version of the toolbox module.
var Version = strings.TrimSpace(rawVersion)

func init() {
	mcpclient.ClientInfo.Version = Version
}
