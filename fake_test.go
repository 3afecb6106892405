package st7735r

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

var errBus = errors.New("bus error")

// rig is a fake panel: a recording bus, DC/RST/BL pins and the sleep hook,
// all writing to one trace.
type rig struct {
	dc, rst, bl *fakePin
	bus         *fakeBus
	trace       []string
}

func newRig(t *testing.T) *rig {
	r := &rig{}
	r.dc = &fakePin{Pin: gpiotest.Pin{N: "DC", Num: 25}}
	r.rst = &fakePin{Pin: gpiotest.Pin{N: "RST", Num: 24}, r: r}
	r.bl = &fakePin{Pin: gpiotest.Pin{N: "BL", Num: 18}, r: r}
	r.bus = &fakeBus{r: r}

	old := sleep
	sleep = func(d time.Duration) {
		r.trace = append(r.trace, "sleep "+d.String())
	}
	t.Cleanup(func() { sleep = old })
	return r
}

// opts returns 128x160 options at offset (2,1) with every line wired.
func (r *rig) opts() *Opts {
	return &Opts{
		W:         128,
		H:         160,
		OffsetX:   2,
		OffsetY:   1,
		RST:       r.rst,
		Backlight: r.bl,
	}
}

// open attaches and initializes a device, failing the test on error.
func (r *rig) open(t *testing.T, opts *Opts) *Dev {
	t.Helper()
	d, err := New(r.bus, r.dc, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	r.reset()
	return d
}

// reset forgets everything recorded so far.
func (r *rig) reset() {
	r.trace = nil
	r.bus.ops = nil
	r.bus.calls = 0
	r.dc.outs = nil
	r.rst.outs = nil
	r.bl.outs = nil
}

// busOp is one transfer with the DC level it was sent under.
type busOp struct {
	dc gpio.Level
	w  []byte
}

type fakeBus struct {
	r      *rig
	ops    []busOp
	failAt int // 1-based index of the transfer to fail, 0 for never
	calls  int
}

func (b *fakeBus) String() string {
	return "fakeBus"
}

func (b *fakeBus) Duplex() conn.Duplex {
	return conn.Half
}

func (b *fakeBus) Tx(w, r []byte) error {
	b.calls++
	op := busOp{dc: b.r.dc.L, w: append([]byte(nil), w...)}
	b.ops = append(b.ops, op)
	if op.dc == gpio.Low {
		b.r.trace = append(b.r.trace, fmt.Sprintf("cmd %02x", w))
	} else {
		b.r.trace = append(b.r.trace, fmt.Sprintf("data % x", w))
	}
	if b.failAt != 0 && b.calls == b.failAt {
		return errBus
	}
	return nil
}

func (b *fakeBus) TxPackets(p []spi.Packet) error {
	return errors.New("fakeBus: TxPackets not supported")
}

// limitedBus reports a maximum transfer size.
type limitedBus struct {
	*fakeBus
	max int
}

func (b *limitedBus) MaxTxSize() int {
	return b.max
}

// fakePin records every level driven on it.
type fakePin struct {
	gpiotest.Pin
	r    *rig // trace target, nil to keep the pin out of the trace
	outs []gpio.Level
	err  error
}

func (p *fakePin) Out(l gpio.Level) error {
	p.outs = append(p.outs, l)
	if p.r != nil {
		p.r.trace = append(p.r.trace, p.N+" "+l.String())
	}
	if p.err != nil {
		return p.err
	}
	return p.Pin.Out(l)
}

// fakePort is a spi.Port handing out the rig's bus.
type fakePort struct {
	bus   spi.Conn
	err   error
	freq  physic.Frequency
	mode  spi.Mode
	bits  int
	calls int
}

func (p *fakePort) String() string {
	return "fakePort"
}

func (p *fakePort) LimitSpeed(f physic.Frequency) error {
	return nil
}

func (p *fakePort) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	p.calls++
	p.freq, p.mode, p.bits = f, mode, bits
	if p.err != nil {
		return nil, p.err
	}
	return p.bus, nil
}

// dataOps returns the payloads sent with DC high.
func dataOps(ops []busOp) [][]byte {
	var out [][]byte
	for _, op := range ops {
		if op.dc == gpio.High {
			out = append(out, op.w)
		}
	}
	return out
}
