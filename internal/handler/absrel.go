package handler

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonasBoss/key-mapper/internal/app"
	"github.com/jonasBoss/key-mapper/internal/event"
	"github.com/jonasBoss/key-mapper/internal/mapping"
	"github.com/jonasBoss/key-mapper/internal/output"
)

// fullSpeed is the emitted units per tick at full axis deflection with a
// gain of 1.
const fullSpeed = 30.0

// AbsToRelHandler converts an absolute axis into a stream of relative
// events, so a joystick can drive the mouse pointer. While the axis is
// deflected past the deadzone, a loop emits the transformed value at the
// mapping's rate; recentering stops the loop.
type AbsToRelHandler struct {
	base
	input    event.Event
	outCode  uint16
	target   string
	rate     int
	deadzone float64
	gain     float64
	expo     float64
	registry *output.Registry
	log      *app.Logger

	mu      sync.Mutex
	speed   float64
	running bool
	stop    chan struct{}
}

func newAbsToRelHandler(comb event.Combination, m *mapping.Mapping, env *Environment) (MappingHandler, error) {
	input, ok := m.AnalogInput()
	if !ok {
		return nil, fmt.Errorf("abs-to-rel mapping %s has no analog input", m)
	}
	if input.Type != event.EvAbs {
		return nil, fmt.Errorf("abs-to-rel needs an absolute axis, got %s", input)
	}
	if !m.HasRawOutput() || m.OutputType != event.EvRel {
		return nil, fmt.Errorf("abs-to-rel mapping %s has no relative output", m)
	}
	return &AbsToRelHandler{
		base:     newBase(event.MustCombination(input), m),
		input:    input,
		outCode:  uint16(m.OutputCode),
		target:   m.TargetDevice,
		rate:     m.Rate,
		deadzone: m.Deadzone,
		gain:     m.Gain,
		expo:     m.Expo,
		registry: env.Registry,
		log:      env.logger().WithComponent("abs-to-rel"),
	}, nil
}

func (h *AbsToRelHandler) Notify(n Notification) bool {
	if n.Event.TypeCode() != h.input.TypeCode() {
		return false
	}

	if n.Event.Action == event.ActionRecenter {
		h.stopLoop()
		return true
	}
	if n.Source == nil {
		return false
	}
	r, ok := n.Source.AbsRange(n.Event.Code)
	if !ok {
		return false
	}

	x := normalize(n.Event.Value, r)
	if math.Abs(x) < h.deadzone {
		h.stopLoop()
		return true
	}

	h.mu.Lock()
	h.speed = expoCurve(x, h.expo) * h.gain * fullSpeed
	if !h.running {
		h.running = true
		h.stop = make(chan struct{})
		go h.run(h.stop)
	}
	h.mu.Unlock()
	return true
}

func (h *AbsToRelHandler) run(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second / time.Duration(h.rate))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.mu.Lock()
			value := int32(math.Round(h.speed))
			h.mu.Unlock()
			if value == 0 {
				continue
			}
			h.registry.Write(event.New(event.EvRel, h.outCode, value), h.target)
		}
	}
}

func (h *AbsToRelHandler) stopLoop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		close(h.stop)
		h.running = false
	}
}

func (h *AbsToRelHandler) Reset() {
	h.stopLoop()
}

// NeedsWrapping reports whether additional combination members gate this
// axis behind an axis switch.
func (h *AbsToRelHandler) NeedsWrapping() bool {
	return h.mapping.Combination.Len() > 1
}

func (h *AbsToRelHandler) WrapWith() []WrapSpec {
	return []WrapSpec{{Combination: h.mapping.Combination, Kind: KindAxisSwitch}}
}

// normalize maps a raw axis value to [-1, 1].
func normalize(value int32, r AxisRange) float64 {
	if r.Max == r.Min {
		return 0
	}
	half := float64(r.Max-r.Min) / 2
	middle := float64(r.Min) + half
	x := (float64(value) - middle) / half
	return math.Max(-1, math.Min(1, x))
}

// expoCurve applies a cubic sensitivity curve. With k = 0 the input passes
// through unchanged. Positive k lowers sensitivity near the center and
// raises it near full deflection; negative k mirrors the curve at y = x,
// which is its inverse.
func expoCurve(x, k float64) float64 {
	if k == 0 {
		return x
	}
	if k > 0 {
		d := 1 - k
		return d*x + (1-d)*x*x*x
	}

	// invert y = d*x + (1-d)*x^3 with d = 1 + k. The curve is strictly
	// monotone on [-1, 1], a few Newton steps are enough.
	d := 1 + k
	y := x
	for i := 0; i < 10; i++ {
		f := d*y + (1-d)*y*y*y - x
		fp := d + 3*(1-d)*y*y
		if fp == 0 {
			break
		}
		y -= f / fp
	}
	return math.Max(-1, math.Min(1, y))
}
