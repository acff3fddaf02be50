package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/joeblew999/plat-mapbridge/internal/metrics"
)

// Command names accepted by Dispatch.
const (
	CommandUpdateLocation = "updateLocation"
	CommandSetStyle       = "setStyle"
	CommandMoveCamera     = "moveCamera"
)

// Commands lists the accepted command names.
var Commands = []string{CommandUpdateLocation, CommandSetStyle, CommandMoveCamera}

// MethodCall is one host command.
type MethodCall struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// maxCameraDurationMs caps moveCamera animations at one hour.
const maxCameraDurationMs = float64(time.Hour / time.Millisecond)

// MoveCameraArgs are the arguments of moveCamera. Duration is in
// milliseconds and may be fractional.
type MoveCameraArgs struct {
	Lat      *float64    `json:"lat"`
	Lng      *float64    `json:"lng"`
	Duration json.Number `json:"duration,omitempty"`
}

// Dispatch runs one host command. It returns once the command was applied
// or rejected; engine work it starts completes asynchronously and is only
// observable through later events. Commands that arrive before the map is
// ready, or after Close, succeed without effect.
func (b *Bridge) Dispatch(ctx context.Context, call MethodCall) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var err error
	switch call.Method {
	case CommandUpdateLocation:
		err = b.dispatchUpdateLocation(call.Arguments)
	case CommandSetStyle:
		err = b.dispatchSetStyle(call.Arguments)
	case CommandMoveCamera:
		err = b.dispatchMoveCamera(call.Arguments)
	default:
		if b.cfg.IgnoreUnknownCommands {
			b.log.Info("command_ignored", "method", call.Method)
			metrics.CommandsTotal.WithLabelValues("unknown", "ignored").Inc()
			return nil, nil
		}
		metrics.CommandsTotal.WithLabelValues("unknown", string(CodeNotImplemented)).Inc()
		return nil, NewError(CodeNotImplemented, fmt.Sprintf("method %q not implemented", call.Method))
	}

	if err != nil {
		metrics.CommandsTotal.WithLabelValues(call.Method, string(CodeOf(err))).Inc()
		b.log.Warn("command_failed", "method", call.Method, "error", err)
		return nil, err
	}
	metrics.CommandsTotal.WithLabelValues(call.Method, "ok").Inc()
	return nil, nil
}

// UpdateLocation replaces the live location marker content.
func (b *Bridge) UpdateLocation(geojson []byte) error {
	return b.updateLocation(geojson)
}

// SetStyle replaces the live style with the referenced one.
func (b *Bridge) SetStyle(ref string) error {
	return b.reload(ref)
}

// MoveCamera eases the camera to lat, lng over d, keeping zoom.
func (b *Bridge) MoveCamera(lat, lng float64, d time.Duration) error {
	return b.moveCamera(lat, lng, d)
}

func (b *Bridge) dispatchUpdateLocation(args json.RawMessage) error {
	data, err := stringOrObject(args)
	if err != nil {
		return err
	}
	return b.updateLocation(data)
}

func (b *Bridge) dispatchSetStyle(args json.RawMessage) error {
	data, err := stringOrObject(args)
	if err != nil {
		return err
	}
	return b.reload(string(data))
}

func (b *Bridge) dispatchMoveCamera(args json.RawMessage) error {
	var a MoveCameraArgs
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.UseNumber()
	if err := dec.Decode(&a); err != nil {
		return Wrap(CodeInvalidArgument, "moveCamera arguments", err)
	}
	if a.Lat == nil || a.Lng == nil {
		return NewError(CodeInvalidArgument, "moveCamera requires lat and lng")
	}
	if err := checkLatLng(*a.Lat, *a.Lng); err != nil {
		return Wrap(CodeInvalidArgument, "moveCamera", err)
	}

	var ms float64
	if a.Duration != "" {
		v, err := a.Duration.Float64()
		if err != nil {
			return Wrap(CodeInvalidArgument, "moveCamera duration", err)
		}
		ms = min(v, maxCameraDurationMs)
	}
	return b.moveCamera(*a.Lat, *a.Lng, time.Duration(ms*float64(time.Millisecond)))
}

// stringOrObject accepts a JSON string argument, as hosts send GeoJSON and
// style references, or a JSON object passed through as-is.
func stringOrObject(args json.RawMessage) ([]byte, error) {
	args = bytes.TrimSpace(args)
	if len(args) == 0 || bytes.Equal(args, []byte("null")) {
		return nil, NewError(CodeInvalidArgument, "missing argument")
	}
	switch args[0] {
	case '"':
		var s string
		if err := json.Unmarshal(args, &s); err != nil {
			return nil, Wrap(CodeInvalidArgument, "string argument", err)
		}
		return []byte(s), nil
	case '{':
		return args, nil
	}
	return nil, NewError(CodeInvalidArgument, "argument must be a string or an object")
}
