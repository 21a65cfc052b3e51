//go:build linux

package i2c

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	i2cFlagsRead uint16  = 0x0001
	i2cRdWr      uintptr = 0x0707
)

// Bus is a Linux i2c-dev adapter. Each Transfer is issued as one I2C_RDWR
// ioctl, so a write followed by a read uses a repeated start.
type Bus struct {
	mutex sync.Mutex
	fd    int
	id    int
}

func OpenBus(busID int) (*Bus, error) {
	fd, err := unix.Open(fmt.Sprintf("/dev/i2c-%d", busID), unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0600)
	if err != nil {
		return nil, fmt.Errorf("Opening I2C bus %d failed: %w", busID, err)
	}

	return &Bus{fd: fd, id: busID}, nil
}

func (b *Bus) ID() int {
	return b.id
}

func (b *Bus) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.fd < 0 {
		return nil
	}
	err := unix.Close(b.fd)
	b.fd = -1
	return err
}

// Write sends data to the device in a single transaction.
func (b *Bus) Write(address uint16, data []byte) error {
	return b.Transfer(address, data, nil)
}

// WriteRead writes w and reads len(r) bytes in a single transaction.
func (b *Bus) WriteRead(address uint16, w []byte, r []byte) error {
	return b.Transfer(address, w, r)
}

func (b *Bus) Transfer(address uint16, writeBuf []byte, readBuf []byte) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	type msg struct {
		Address uint16
		Flags   uint16
		Len     uint16
		Buf     uintptr
	}

	var transfer []msg
	if len(writeBuf) > 0 {
		transfer = append(transfer, msg{
			Address: address,
			Len:     uint16(len(writeBuf)),
			Buf:     uintptr(unsafe.Pointer(&writeBuf[0])),
		})
	}
	if len(readBuf) > 0 {
		transfer = append(transfer, msg{
			Address: address,
			Flags:   i2cFlagsRead,
			Len:     uint16(len(readBuf)),
			Buf:     uintptr(unsafe.Pointer(&readBuf[0])),
		})
	}

	if len(transfer) == 0 {
		// A succesful, albeit useless, transfer
		return nil
	}
	if b.fd < 0 {
		return unix.EBADF
	}

	type rdWrRaw struct {
		Messages    uintptr
		NumMessages uint32
	}

	param := rdWrRaw{
		Messages:    uintptr(unsafe.Pointer(&transfer[0])),
		NumMessages: uint32(len(transfer)),
	}

	_, _, errNo := unix.Syscall(unix.SYS_IOCTL, uintptr(b.fd), i2cRdWr, uintptr(unsafe.Pointer(&param)))

	runtime.KeepAlive(transfer)
	runtime.KeepAlive(writeBuf)
	runtime.KeepAlive(readBuf)

	if errNo != 0 {
		return fmt.Errorf("I2C transfer to 0x%02X failed: %w", address, errNo)
	}

	return nil
}
