//go:build !windows

package process

import (
	"bytes"
	"errors"
	"os"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

type osHost struct{}

// reapTimeout bounds how long Terminate waits for a killed pid to disappear.
const reapTimeout = 2 * time.Second

func (osHost) IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	// When pid is our own exited child, reaping it here is the only way it
	// stops showing up as alive.
	if tryReap(pid) {
		return false
	}
	if runtime.GOOS == "linux" && isZombieLinux(pid) {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

func (h osHost) Terminate(pid int) error {
	if pid <= 0 {
		return ErrInvalidPID
	}
	// Spawned processes lead their own session, so the group kill also takes
	// down anything they forked. A reused pid that happens to lead an
	// unrelated session still matches; the registry cannot tell them apart.
	if leadsSession(pid) {
		_ = syscall.Kill(-pid, syscall.SIGKILL)
	}
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}
	deadline := time.Now().Add(reapTimeout)
	for time.Now().Before(deadline) {
		if !h.IsAlive(pid) {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

// leadsSession reports whether pid is the leader of its own process group
// and session, which is how ExecSpawner starts every child.
func leadsSession(pid int) bool {
	pgid, err := unix.Getpgid(pid)
	if err != nil || pgid != pid {
		return false
	}
	sid, err := unix.Getsid(pid)
	return err == nil && sid == pid
}

// tryReap performs a non-blocking wait on pid. It returns true only when pid
// was a child of this process and has exited.
func tryReap(pid int) bool {
	var ws syscall.WaitStatus
	wpid, err := syscall.Wait4(pid, &ws, syscall.WNOHANG, nil)
	return err == nil && wpid == pid
}

// isZombieLinux returns true if /proc/<pid>/status reports a zombie state (Z).
func isZombieLinux(pid int) bool {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return false
	}
	return bytes.Contains(b, []byte("State:\tZ"))
}
