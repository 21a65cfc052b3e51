package icm42670p

import "fmt"

// DeviceAddress is the 7-bit I2C address of the sensor. The AP_AD0 pin
// selects between the two.
type DeviceAddress uint16

const (
	AddressAD0 DeviceAddress = 0b110_1000
	AddressAD1 DeviceAddress = 0b110_1001
)

func (a DeviceAddress) String() string {
	return fmt.Sprintf("0x%02X", uint16(a))
}

// Register is an address in user bank 0 of the sensor.
type Register uint8

// Registers. Upper byte of each axis sits at the lower address.
const (
	RegAccelDataX1 Register = 0x0B
	RegAccelDataX0 Register = 0x0C
	RegAccelDataY1 Register = 0x0D
	RegAccelDataY0 Register = 0x0E
	RegAccelDataZ1 Register = 0x0F
	RegAccelDataZ0 Register = 0x10
	RegPwrMgmt0    Register = 0x1F
	RegWhoAmI      Register = 0x75
)

var registerNames = map[Register]string{
	RegAccelDataX1: "ACCEL_DATA_X1",
	RegAccelDataX0: "ACCEL_DATA_X0",
	RegAccelDataY1: "ACCEL_DATA_Y1",
	RegAccelDataY0: "ACCEL_DATA_Y0",
	RegAccelDataZ1: "ACCEL_DATA_Z1",
	RegAccelDataZ0: "ACCEL_DATA_Z0",
	RegPwrMgmt0:    "PWR_MGMT0",
	RegWhoAmI:      "WHO_AM_I",
}

func (r Register) String() string {
	if name, ok := registerNames[r]; ok {
		return name
	}
	return fmt.Sprintf("REG_0x%02X", uint8(r))
}

// PowerMode is a bit pattern for PWR_MGMT0.
type PowerMode uint8

const (
	// PowerOff is the reset value: accelerometer and gyroscope off.
	PowerOff           PowerMode = 0b0000_0000
	PowerAccelLowPower PowerMode = 0b0000_0010
	PowerAccelLowNoise PowerMode = 0b0000_0011
	PowerGyroStandby   PowerMode = 0b0000_0100
	PowerGyroLowNoise  PowerMode = 0b0000_1100
)

// WhoAmIValue is the content of WHO_AM_I on an ICM-42670-P.
const WhoAmIValue = 0x67
