package device

import (
	"fmt"

	serial "go.bug.st/serial"
)

// SerialDevice is a Device backed by a serial port.
type SerialDevice struct {
	*StreamDevice
	path string
	baud int
}

// OpenSerial opens path at baud, 8N1.
func OpenSerial(path string, baud int) (*SerialDevice, error) {
	p, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", path, err)
	}
	return &SerialDevice{StreamDevice: NewStreamDevice(p), path: path, baud: baud}, nil
}

// Path returns the device path the port was opened on.
func (s *SerialDevice) Path() string { return s.path }

// String implements fmt.Stringer.
func (s *SerialDevice) String() string { return fmt.Sprintf("%s@%d", s.path, s.baud) }

// Ports lists the serial ports visible to the OS.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}
