// Package serial is a real POSIX serial-port transport for the modbus
// package, built directly on golang.org/x/sys/unix for low-level file
// and ioctl access rather than going through os.File's more restrictive
// API. It is for an embedder targeting real hardware; cmd/vos-sim and
// the tests use modbustest's loopback instead.
package serial

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Baud is one of the standard RTU line rates this package accepts.
type Baud int

const (
	Baud9600   Baud = 9600
	Baud19200  Baud = 19200
	Baud38400  Baud = 38400
	Baud57600  Baud = 57600
	Baud115200 Baud = 115200
)

func (b Baud) speed() (uint32, error) {
	switch b {
	case Baud9600:
		return unix.B9600, nil
	case Baud19200:
		return unix.B19200, nil
	case Baud38400:
		return unix.B38400, nil
	case Baud57600:
		return unix.B57600, nil
	case Baud115200:
		return unix.B115200, nil
	default:
		return 0, fmt.Errorf("serial: unsupported baud rate %d", int(b))
	}
}

// Parity selects the line's parity bit configuration.
type Parity int

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

// Config parameterizes a Port.
type Config struct {
	Device string
	Baud   Baud
	Parity Parity
}

// Port is a real serial device, opened and configured into raw RTU mode
// (8 data bits, no line discipline processing, the caller's choice of
// parity and baud). It implements modbus.Transport directly, and
// modbus.DirController when half-duplex direction control is layered on
// top by an embedder (not done here, since direction control is a GPIO
// concern this package has no opinion on).
type Port struct {
	fd int
}

// Open configures and returns a ready-to-poll Port.
func Open(cfg Config) (*Port, error) {
	fd, err := unix.Open(cfg.Device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", cfg.Device, err)
	}

	t, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("serial: get termios: %w", err)
	}

	speed, err := cfg.Baud.speed()
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	unix.CfMakeRaw(t)
	t.Cflag &^= unix.PARENB | unix.PARODD | unix.CSTOPB | unix.CSIZE
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL
	switch cfg.Parity {
	case ParityEven:
		t.Cflag |= unix.PARENB
	case ParityOdd:
		t.Cflag |= unix.PARENB | unix.PARODD
	}
	if err := unix.CfSetspeed(t, speed); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("serial: set speed: %w", err)
	}
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, t); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("serial: set termios: %w", err)
	}

	return &Port{fd: fd}, nil
}

// Read returns immediately with whatever bytes are available (the port
// is opened non-blocking with VMIN=0, VTIME=0), 0 if none.
func (p *Port) Read(buf []byte) (int, error) {
	n, err := unix.Read(p.fd, buf)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, nil
	}
	if n < 0 {
		n = 0
	}
	return n, err
}

// Write blocks until the kernel has accepted the full frame into its
// transmit buffer.
func (p *Port) Write(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := unix.Write(p.fd, buf[total:])
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			continue
		}
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Close releases the underlying file descriptor.
func (p *Port) Close() error {
	return unix.Close(p.fd)
}
