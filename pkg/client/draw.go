package client

import (
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"liveroom/pkg/geometry"
	"liveroom/pkg/types"
)

// Drawing tools.
const (
	ToolPen    = "pen"
	ToolEraser = "eraser"
	ToolRect   = "rect"
	ToolCircle = "circle"
)

// drawSendInterval caps stroke transmission at ~30 updates/second.
// Samples between transmissions are superseded by the next accumulated
// update, never queued.
const drawSendInterval = 33 * time.Millisecond

type sendFunc func(env *types.Envelope) error

// DrawEngine synchronizes the shared shape list. Per participant it is
// a two-state machine, IDLE and DRAWING; while drawing, the full shape
// list is transmitted throttled and in unit coordinates, and gesture
// end always flushes the final geometry unthrottled.
type DrawEngine struct {
	send sendFunc
	echo *EchoFilter

	mu       sync.Mutex
	canvasW  float64
	canvasH  float64
	shapes   []types.DrawShape // pixel space, room-wide list
	drawing  bool
	anchor   types.Point
	lastSent time.Time
	interval time.Duration
	now      func() time.Time
}

func NewDrawEngine(send sendFunc, echo *EchoFilter, canvasW, canvasH float64) *DrawEngine {
	if canvasW <= 0 || canvasH <= 0 {
		// Unit pass-through until a real size is reported; a zero
		// dimension would put non-finite coordinates on the wire.
		canvasW, canvasH = 1, 1
	}
	return &DrawEngine{
		send:     send,
		echo:     echo,
		canvasW:  canvasW,
		canvasH:  canvasH,
		interval: drawSendInterval,
		now:      time.Now,
	}
}

// SetCanvasSize updates the local pixel dimensions used for
// normalization. Receivers denormalize with their own size, so this
// never needs to be agreed with the peer. Non-positive dimensions are
// ignored.
func (d *DrawEngine) SetCanvasSize(w, h float64) {
	if w <= 0 || h <= 0 {
		return
	}
	d.mu.Lock()
	d.canvasW, d.canvasH = w, h
	d.mu.Unlock()
}

// BeginStroke transitions IDLE → DRAWING: allocates a shape id, seeds
// geometry from the start point and appends to the shared list.
func (d *DrawEngine) BeginStroke(tool, stroke string, strokeWidth float64, p types.Point) error {
	d.mu.Lock()
	d.drawing = true
	d.anchor = p

	shape := types.DrawShape{
		ID:          uuid.New().String(),
		Tool:        tool,
		Stroke:      stroke,
		StrokeWidth: strokeWidth,
	}
	switch tool {
	case ToolRect:
		shape.Geometry.Box = &types.Box{X: p.X, Y: p.Y}
	case ToolCircle:
		shape.Geometry.Circle = &types.Circle{CX: p.X, CY: p.Y}
	default:
		shape.Geometry.Points = []types.Point{p}
	}
	d.shapes = append(d.shapes, shape)
	d.mu.Unlock()

	d.echo.BeginLive(concernDrawing)
	return d.transmit(false)
}

// Extend grows the active shape from a movement sample: appends a path
// point, or recomputes the box/radius from the anchor and the current
// point.
func (d *DrawEngine) Extend(p types.Point) error {
	d.mu.Lock()
	if !d.drawing || len(d.shapes) == 0 {
		d.mu.Unlock()
		return nil
	}
	shape := &d.shapes[len(d.shapes)-1]
	switch {
	case shape.Geometry.Box != nil:
		shape.Geometry.Box.X = math.Min(d.anchor.X, p.X)
		shape.Geometry.Box.Y = math.Min(d.anchor.Y, p.Y)
		shape.Geometry.Box.W = math.Abs(p.X - d.anchor.X)
		shape.Geometry.Box.H = math.Abs(p.Y - d.anchor.Y)
	case shape.Geometry.Circle != nil:
		dx, dy := p.X-d.anchor.X, p.Y-d.anchor.Y
		shape.Geometry.Circle.R = math.Hypot(dx, dy)
	default:
		shape.Geometry.Points = append(shape.Geometry.Points, p)
	}
	d.mu.Unlock()

	return d.transmit(false)
}

// EndStroke transitions DRAWING → IDLE and transmits unconditionally:
// the final state of a stroke must never be lost to a throttle window.
func (d *DrawEngine) EndStroke() error {
	d.mu.Lock()
	if !d.drawing {
		d.mu.Unlock()
		return nil
	}
	d.drawing = false
	d.mu.Unlock()

	err := d.transmit(true)
	d.echo.EndLive(concernDrawing)
	return err
}

// ClearBoard atomically empties the shared list. The echo baseline is
// rebaselined synchronously, before the frame leaves, so a stale shape
// list cannot win a subsequent race.
func (d *DrawEngine) ClearBoard() error {
	d.mu.Lock()
	d.shapes = nil
	d.mu.Unlock()

	d.echo.RecordSent(concernDrawing, map[string]any{"shapes": []types.DrawShape{}})
	return d.send(&types.Envelope{Type: types.MessageTypeBoardClear, Data: map[string]any{}})
}

// ApplyRemote replaces the local list with a genuine remote state,
// denormalized onto the local canvas. The caller has already run the
// echo/live classification.
func (d *DrawEngine) ApplyRemote(fields map[string]any) error {
	raw, err := json.Marshal(fields["shapes"])
	if err != nil {
		return err
	}
	var normalized []types.DrawShape
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return err
	}

	d.mu.Lock()
	d.shapes = geometry.DenormalizeAll(normalized, d.canvasW, d.canvasH)
	d.mu.Unlock()
	return nil
}

// Shapes returns a copy of the current pixel-space shape list.
func (d *DrawEngine) Shapes() []types.DrawShape {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]types.DrawShape, len(d.shapes))
	copy(out, d.shapes)
	return out
}

// transmit sends the normalized full list, gated by the throttle
// unless forced.
func (d *DrawEngine) transmit(force bool) error {
	d.mu.Lock()
	now := d.now()
	if !force && now.Sub(d.lastSent) < d.interval {
		d.mu.Unlock()
		return nil
	}
	d.lastSent = now
	normalized := geometry.NormalizeAll(d.shapes, d.canvasW, d.canvasH)
	d.mu.Unlock()

	d.echo.RecordSent(concernDrawing, map[string]any{"shapes": normalized})
	return d.send(&types.Envelope{
		Type: types.MessageTypeZoneAction,
		Data: map[string]any{
			"activity_type": types.ActivityDrawing,
			"action":        "draw",
			"shapes":        normalized,
		},
	})
}
