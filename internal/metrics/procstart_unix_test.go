//go:build !windows

package metrics

import (
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartFromStat(t *testing.T) {
	// comm with spaces and a closing paren
	line := "1234 (my (odd) proc) S 1 1234 1234 0 -1 4194560 100 0 0 0 1 2 0 0 20 0 1 0 500 1000 10 18446744073709551615"
	assert.Equal(t, int64(1000+5), startFromStat(line, 1000, 100))

	assert.Zero(t, startFromStat(line, 0, 100), "missing btime")
	assert.Zero(t, startFromStat("garbage", 1000, 100))
	assert.Zero(t, startFromStat("1 (x) S 1 2 3", 1000, 100), "too few fields")
}

func TestProcStartUnix_Self(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("start time only asserted on linux and darwin")
	}
	secs := procStartUnix(os.Getpid())
	if secs == 0 {
		t.Skip("process start time unavailable in this environment")
	}
	started := time.Unix(secs, 0)
	assert.False(t, started.After(time.Now().Add(time.Second)))
	assert.True(t, time.Since(started) < 24*time.Hour, "test process started over a day ago: %v", started)
}

func TestProcStartUnix_InvalidPID(t *testing.T) {
	assert.Zero(t, procStartUnix(0))
	assert.Zero(t, procStartUnix(-1))
}
