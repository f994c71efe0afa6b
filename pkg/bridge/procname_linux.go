package bridge

import (
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// commPath names the thread group leader, which is what ps -o comm and top
// show for the pid.
var commPath = "/proc/self/comm"

// setProcessName sets the process name. The kernel keeps the first 15
// bytes.
func setProcessName(name string) error {
	if err := os.WriteFile(commPath, []byte(name), 0); err == nil {
		return nil
	}

	// No procfs: prctl only renames the calling thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	p, err := unix.BytePtrFromString(name)
	if err != nil {
		return err
	}
	return unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(p)), 0, 0, 0)
}
