package serial

import (
	ioctl "github.com/daedaluz/goioctl"
	"syscall"
	"unsafe"
)

// Winsize mirrors struct winsize from <asm-generic/termios.h>, used by
// OpenPTY to propagate a terminal size to the pty slave.
type Winsize struct {
	Row    uint16
	Col    uint16
	Xpixel uint16
	Ypixel uint16
}

// GetPTN returns the pty number associated with a /dev/ptmx master fd.
func (p *Port) GetPTN() (uint32, error) {
	var n uint32
	err := ioctl.Ioctl(uintptr(p.f), tiocgptn, uintptr(unsafe.Pointer(&n)))
	return n, err
}

// SetLockPT sets or clears the pty's lock, which must be cleared before
// the slave half can be opened.
func (p *Port) SetLockPT(lock bool) error {
	var v int32
	if lock {
		v = 1
	}
	return ioctl.Ioctl(uintptr(p.f), tiocsptlck, uintptr(unsafe.Pointer(&v)))
}

// GetPTPeer opens the pty slave associated with a /dev/ptmx master fd
// directly via TIOCGPTPEER, without walking /dev/pts by name. Unlike
// the other ioctls here, TIOCGPTPEER yields its result as the syscall's
// return value rather than through an output buffer, so it bypasses
// the Ioctl() helper and calls through to the raw syscall.
func (p *Port) GetPTPeer(flags int) (*Port, error) {
	fd, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(p.f), tiocgptpeer, uintptr(flags))
	if errno != 0 {
		return nil, errno
	}
	return &Port{options: p.options, f: int(fd)}, nil
}

// SetWinSize sets the pty slave's terminal window size.
func (p *Port) SetWinSize(w *Winsize) error {
	return ioctl.Ioctl(uintptr(p.f), tiocswinsz, uintptr(unsafe.Pointer(w)))
}

// GetWinSize returns the pty slave's terminal window size.
func (p *Port) GetWinSize() (*Winsize, error) {
	w := &Winsize{}
	if err := ioctl.Ioctl(uintptr(p.f), tiocgwinsz, uintptr(unsafe.Pointer(w))); err != nil {
		return nil, err
	}
	return w, nil
}
