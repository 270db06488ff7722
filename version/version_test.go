package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestString(t *testing.T) {
	dev := Info{Version: "dev", CommitHash: "abc1234", BuildTime: "now"}
	assert.Equal(t, "lhjobs dev (commit abc1234, built now)", dev.String())

	tagged := Info{Version: "v1.2.0", CommitHash: "abc1234", BuildTime: "now"}
	assert.Equal(t, "lhjobs v1.2.0 (commit abc1234, built now)", tagged.String())
	assert.Equal(t, "lhjobs/v1.2.0", tagged.UserAgent())
}
