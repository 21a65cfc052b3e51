package icm42670p

import "fmt"

// Bus is a two-wire bus on which devices are selected by a 7-bit address.
// Every call must map onto exactly one bus transaction.
type Bus interface {
	// Write sends data to the device in a single transaction.
	Write(address uint16, data []byte) error

	// WriteRead sends w and then, after a repeated start, reads len(r)
	// bytes from the same device.
	WriteRead(address uint16, w []byte, r []byte) error
}

// BusError is returned by every Device operation that fails. It wraps the
// error reported by the Bus.
type BusError struct {
	Address  DeviceAddress
	Register Register
	Write    bool
	Err      error
}

func (e *BusError) Error() string {
	op := "read"
	if e.Write {
		op = "write"
	}
	return fmt.Sprintf("ICM42670P at %s: %s of %s failed: %v", e.Address, op, e.Register, e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}

func (d *Device) writeRegister(reg Register, value uint8) error {
	err := d.bus.Write(uint16(d.address), []byte{uint8(reg), value})
	if err != nil {
		return &BusError{Address: d.address, Register: reg, Write: true, Err: err}
	}
	return nil
}

func (d *Device) readRegister(reg Register) (uint8, error) {
	var read [1]byte
	err := d.bus.WriteRead(uint16(d.address), []byte{uint8(reg)}, read[:])
	if err != nil {
		return 0, &BusError{Address: d.address, Register: reg, Err: err}
	}
	return read[0], nil
}

// readRegisterUint16 combines two registers, upper byte first. The two reads
// are separate transactions, so a sample update in between can tear the
// value.
func (d *Device) readRegisterUint16(upper Register, lower Register) (uint16, error) {
	hi, err := d.readRegister(upper)
	if err != nil {
		return 0, err
	}
	lo, err := d.readRegister(lower)
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}
