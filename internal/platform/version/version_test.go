package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet_Defaults(t *testing.T) {
	info := Get()

	assert.Equal(t, "dev", info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Contains(t, info.String(), "dev (commit unknown")
}

func TestUserAgent(t *testing.T) {
	assert.Equal(t, "vision-visionctl/dev", UserAgent("visionctl"))
}
