package serialdmx

import (
	"fmt"

	"go.bug.st/serial"
)

const DataBaud = 250000

// Link is the byte pipe a transmitter drives. Changing the baud rate is how
// the break condition is produced.
type Link interface {
	SetBaudRate(baud int) error
	Write(p []byte) (int, error)
	Drain() error
	Close() error
}

type serialLink struct {
	port serial.Port
	mode serial.Mode
}

// OpenSerial opens a serial port at the DMX data rate, 8N2.
func OpenSerial(name string) (Link, error) {
	mode := serial.Mode{
		BaudRate: DataBaud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.TwoStopBits,
	}
	port, err := serial.Open(name, &mode)
	if err != nil {
		return nil, fmt.Errorf("serialdmx: open %s: %w", name, err)
	}
	return &serialLink{port: port, mode: mode}, nil
}

// Ports lists the serial ports present on the system.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

func (l *serialLink) SetBaudRate(baud int) error {
	if l.mode.BaudRate == baud {
		return nil
	}
	l.mode.BaudRate = baud
	return l.port.SetMode(&l.mode)
}

func (l *serialLink) Write(p []byte) (int, error) {
	return l.port.Write(p)
}

func (l *serialLink) Drain() error {
	return l.port.Drain()
}

func (l *serialLink) Close() error {
	return l.port.Close()
}
