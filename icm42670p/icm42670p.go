// Package icm42670p is a driver for the accelerometer of the TDK ICM-42670-P
// 6-axis IMU on an I2C bus.
//
// The driver returns raw register counts. It does not convert to physical
// units and does not touch the gyroscope, temperature sensor, FIFO or
// interrupts.
//
// A Device is not safe for concurrent use. Callers sharing one must
// serialize access themselves.
package icm42670p

// Device is a connection to one sensor.
type Device struct {
	bus     Bus
	address DeviceAddress
	mode    PowerMode
}

// AccelReading holds one raw count per axis.
type AccelReading struct {
	X uint16
	Y uint16
	Z uint16
}

// New creates a Device for the sensor at address. No bus traffic is
// generated, so the error is currently always nil.
func New(bus Bus, address DeviceAddress) (*Device, error) {
	return &Device{
		bus:     bus,
		address: address,
		mode:    PowerOff,
	}, nil
}

// Address returns the address given to New.
func (d *Device) Address() DeviceAddress {
	return d.address
}

// Mode returns the last power mode written through this Device. It is only
// informational: reads are allowed in every mode.
func (d *Device) Mode() PowerMode {
	return d.mode
}

// SetAccelLowNoiseMode starts continuous accelerometer sampling. There is no
// way back through this API.
func (d *Device) SetAccelLowNoiseMode() error {
	err := d.writeRegister(RegPwrMgmt0, uint8(PowerAccelLowNoise))
	if err != nil {
		return err
	}
	d.mode = PowerAccelLowNoise
	return nil
}

// ReadAccelX returns the raw X axis count.
func (d *Device) ReadAccelX() (uint16, error) {
	return d.readRegisterUint16(RegAccelDataX1, RegAccelDataX0)
}

// ReadAccelY returns the raw Y axis count.
func (d *Device) ReadAccelY() (uint16, error) {
	return d.readRegisterUint16(RegAccelDataY1, RegAccelDataY0)
}

// ReadAccelZ returns the raw Z axis count.
func (d *Device) ReadAccelZ() (uint16, error) {
	return d.readRegisterUint16(RegAccelDataZ1, RegAccelDataZ0)
}

// ReadAccel reads X, Y and Z in that order and stops at the first failure.
// The axes are not sampled atomically.
func (d *Device) ReadAccel() (AccelReading, error) {
	var r AccelReading
	var err error

	if r.X, err = d.ReadAccelX(); err != nil {
		return AccelReading{}, err
	}
	if r.Y, err = d.ReadAccelY(); err != nil {
		return AccelReading{}, err
	}
	if r.Z, err = d.ReadAccelZ(); err != nil {
		return AccelReading{}, err
	}
	return r, nil
}

// WhoAmI reads the identification register. An ICM-42670-P returns
// WhoAmIValue.
func (d *Device) WhoAmI() (uint8, error) {
	return d.readRegister(RegWhoAmI)
}

// Signed reinterprets a raw count as the two's complement value the sensor
// stores.
func Signed(raw uint16) int16 {
	return int16(raw)
}
