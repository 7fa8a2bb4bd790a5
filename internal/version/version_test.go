package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersion(t *testing.T) {
	SetBuildInfo("abc123", "2026-01-01")
	t.Cleanup(func() { SetBuildInfo("unknown", "unknown") })

	info := Get()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, "abc123", info.Commit)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.Contains(t, GetVersion(), "commit: abc123")
	assert.Contains(t, GetVersion(), "built: 2026-01-01")
}

func TestSetBuildInfoIgnoresEmpty(t *testing.T) {
	SetBuildInfo("keep", "")
	t.Cleanup(func() { SetBuildInfo("unknown", "unknown") })

	SetBuildInfo("", "")
	assert.Equal(t, "keep", Get().Commit)
}
