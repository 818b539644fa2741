package posegraph

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
)

// maxPayloadBytes limits inflated payloads to 64 MB
const maxPayloadBytes = 64 << 20

// DecodePayload returns the JSON document carried by an MQTT payload. Both
// raw JSON and zlib-compressed JSON are accepted.
func DecodePayload(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("decoding payload: %w: empty data", ErrMalformedInput)
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return trimmed, nil
	}

	jsonBytes, err := inflateZlib(data)
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w: not JSON or zlib-compressed JSON", ErrMalformedInput)
	}
	if len(jsonBytes) == 0 {
		return nil, fmt.Errorf("decoding payload: %w: decoded JSON payload is empty", ErrMalformedInput)
	}
	return jsonBytes, nil
}

// DecodeMessage decodes a payload into v
func DecodeMessage(data []byte, v any) error {
	jsonBytes, err := DecodePayload(data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(jsonBytes, v); err != nil {
		return fmt.Errorf("parsing %T: %w", v, err)
	}
	return nil
}

// ParseGraphMessage decodes a graph-topology payload
func ParseGraphMessage(data []byte) (*GraphMessage, error) {
	var msg GraphMessage
	if err := DecodeMessage(data, &msg); err != nil {
		return nil, err
	}
	if len(msg.Coords) == 0 {
		return nil, fmt.Errorf("parsing graph: %w: no coordinates", ErrMalformedInput)
	}
	return &msg, nil
}

// ParseTrajectoryMessage decodes a trajectory payload
func ParseTrajectoryMessage(data []byte) (*TrajectoryMessage, error) {
	var msg TrajectoryMessage
	if err := DecodeMessage(data, &msg); err != nil {
		return nil, err
	}
	if len(msg.Nodes) == 0 {
		return nil, fmt.Errorf("parsing trajectory: %w: no nodes", ErrMalformedInput)
	}
	return &msg, nil
}

// ParsePathMessage decodes a path payload
func ParsePathMessage(data []byte) (*PathMessage, error) {
	var msg PathMessage
	if err := DecodeMessage(data, &msg); err != nil {
		return nil, err
	}
	if len(msg.Poses) == 0 {
		return nil, fmt.Errorf("parsing path: %w: no poses", ErrMalformedInput)
	}
	return &msg, nil
}

// ParseSubmapConstraintMessage decodes a submap-constraint payload
func ParseSubmapConstraintMessage(data []byte) (*SubmapConstraintMessage, error) {
	var msg SubmapConstraintMessage
	if err := DecodeMessage(data, &msg); err != nil {
		return nil, err
	}
	if len(msg.Submaps) == 0 {
		return nil, fmt.Errorf("parsing submap constraints: %w: no submaps", ErrMalformedInput)
	}
	return &msg, nil
}

// inflateZlib decompresses zlib-compressed data
func inflateZlib(data []byte) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating zlib reader: %w", err)
	}
	defer func() { _ = reader.Close() }()

	decompressed, err := io.ReadAll(io.LimitReader(reader, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("decompressing zlib data: %w", err)
	}
	return decompressed, nil
}
