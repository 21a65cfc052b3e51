// Package i2ctest provides an in-memory I2C bus for testing register
// based drivers.
package i2ctest

import (
	"errors"
	"sync"
)

var (
	// ErrorNack is returned for transactions to an address without a device.
	ErrorNack = errors.New("I2C transaction not acknowledged")
	// ErrorEmpty is returned when a transaction has no register byte.
	ErrorEmpty = errors.New("I2C transaction without register address")
)

// Transaction is a record of one bus transaction.
type Transaction struct {
	Address uint16
	Write   []byte
	// Read holds the bytes returned by the read phase. It is nil for
	// write-only transactions.
	Read []byte
	Err  error
}

type failure struct {
	address  uint16
	register uint8
}

// Bus emulates devices with 256 byte register files and auto-incrementing
// register pointers. It records every transaction.
type Bus struct {
	mutex sync.Mutex

	devices      map[uint16]*[256]byte
	failures     map[failure]error
	transactions []Transaction
}

// New creates a Bus with devices at the given addresses.
func New(addresses ...uint16) *Bus {
	b := &Bus{
		devices:  make(map[uint16]*[256]byte),
		failures: make(map[failure]error),
	}
	for _, a := range addresses {
		b.devices[a] = &[256]byte{}
	}
	return b
}

// SetRegister changes the content of a register without recording a
// transaction.
func (b *Bus) SetRegister(address uint16, register uint8, value uint8) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	regs, ok := b.devices[address]
	if !ok {
		regs = &[256]byte{}
		b.devices[address] = regs
	}
	regs[register] = value
}

// Register returns the content of a register.
func (b *Bus) Register(address uint16, register uint8) uint8 {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if regs, ok := b.devices[address]; ok {
		return regs[register]
	}
	return 0
}

// Fail makes every transaction that addresses register on the device fail
// with err. Passing a nil err removes the failure.
func (b *Bus) Fail(address uint16, register uint8, err error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	key := failure{address: address, register: register}
	if err == nil {
		delete(b.failures, key)
	} else {
		b.failures[key] = err
	}
}

// Transactions returns a copy of the recorded transactions.
func (b *Bus) Transactions() []Transaction {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return append([]Transaction(nil), b.transactions...)
}

// Reset clears the transaction log.
func (b *Bus) Reset() {
	b.mutex.Lock()
	b.transactions = nil
	b.mutex.Unlock()
}

func (b *Bus) check(address uint16, w []byte) (*[256]byte, error) {
	regs, ok := b.devices[address]
	if !ok {
		return nil, ErrorNack
	}
	if len(w) == 0 {
		return nil, ErrorEmpty
	}
	if err, ok := b.failures[failure{address: address, register: w[0]}]; ok {
		return nil, err
	}
	return regs, nil
}

// Write stores data[1:] starting at register data[0].
func (b *Bus) Write(address uint16, data []byte) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	t := Transaction{
		Address: address,
		Write:   append([]byte(nil), data...),
	}

	regs, err := b.check(address, data)
	if err == nil {
		reg := data[0]
		for _, v := range data[1:] {
			regs[reg] = v
			reg++
		}
	}

	t.Err = err
	b.transactions = append(b.transactions, t)
	return err
}

// WriteRead fills r from consecutive registers starting at w[0]. Bytes
// after the first in w are written first, like Write does.
func (b *Bus) WriteRead(address uint16, w []byte, r []byte) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	t := Transaction{
		Address: address,
		Write:   append([]byte(nil), w...),
	}

	regs, err := b.check(address, w)
	if err == nil {
		reg := w[0]
		for _, v := range w[1:] {
			regs[reg] = v
			reg++
		}
		for i := range r {
			r[i] = regs[reg]
			reg++
		}
		t.Read = append([]byte{}, r...)
	}

	t.Err = err
	b.transactions = append(b.transactions, t)
	return err
}
