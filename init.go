package st7735r

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// State is the power-up state of the controller.
//
// The sequence only moves forward: Unreset → HardwareReset → SoftwareReset →
// Awake → Configured → On.
type State int

// Initialization states.
const (
	Unreset       State = iota // Attached, nothing sent yet
	HardwareReset              // RST pulsed (or not wired)
	SoftwareReset              // SWRESET sent and settled
	Awake                      // SLPOUT sent and settled
	Configured                 // COLMOD and MADCTL written
	On                         // DISPON sent, pixels accepted
)

var stateNames = [...]string{"unreset", "hardware-reset", "software-reset", "awake", "configured", "on"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Controller timings. The datasheet minimum after SLPOUT is 120ms.
const (
	resetHold      = 20 * time.Millisecond
	resetSettle    = 150 * time.Millisecond
	swResetSettle  = 150 * time.Millisecond
	sleepOutSettle = 150 * time.Millisecond
	displayOnDelay = 20 * time.Millisecond
)

// sleep blocks the caller; replaced in tests.
var sleep = time.Sleep

type initStep struct {
	name string
	to   State
	run  func(d *Dev) error
}

var initSequence = []initStep{
	{"hardware reset", HardwareReset, (*Dev).hardwareReset},
	{"software reset", SoftwareReset, (*Dev).softwareReset},
	{"sleep out", Awake, (*Dev).sleepOut},
	{"configure", Configured, (*Dev).configure},
	{"display on", On, (*Dev).displayOn},
}

// init runs the power-up sequence and switches the backlight on.
// It runs at most once per device.
func (d *Dev) init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.halted {
		return ErrHalted
	}
	if d.state != Unreset {
		return fmt.Errorf("%w: device is already %s", ErrSequence, d.state)
	}
	for _, s := range initSequence {
		if err := d.advance(s); err != nil {
			return err
		}
	}
	return d.backlight(true)
}

// advance runs one step if the device is exactly one state behind it.
func (d *Dev) advance(s initStep) error {
	if d.state != s.to-1 {
		return fmt.Errorf("%w: %s needs %s, device is %s", ErrSequence, s.name, s.to-1, d.state)
	}
	d.log.Debug().Str("step", s.name).Msg("st7735r: init")
	if err := s.run(d); err != nil {
		return fmt.Errorf("st7735r: %s: %w", s.name, err)
	}
	d.state = s.to
	return nil
}

func (d *Dev) hardwareReset() error {
	if d.rst == nil {
		return nil
	}
	if err := d.rst.Out(gpio.Low); err != nil {
		return fmt.Errorf("failed to pull RST low: %w", err)
	}
	sleep(resetHold)
	if err := d.rst.Out(gpio.High); err != nil {
		return fmt.Errorf("failed to pull RST high: %w", err)
	}
	sleep(resetSettle)
	return nil
}

func (d *Dev) softwareReset() error {
	if err := d.writeCommand(cmdSWRESET); err != nil {
		return err
	}
	sleep(swResetSettle)
	return nil
}

func (d *Dev) sleepOut() error {
	if err := d.writeCommand(cmdSLPOUT); err != nil {
		return err
	}
	sleep(sleepOutSettle)
	return nil
}

func (d *Dev) configure() error {
	if err := d.command(cmdCOLMOD, colmodRGB565); err != nil {
		return err
	}
	d.colmod = colmodRGB565
	return d.applyOrientation(d.rotation)
}

func (d *Dev) displayOn() error {
	if err := d.writeCommand(cmdDISPON); err != nil {
		return err
	}
	sleep(displayOnDelay)
	return nil
}
