package providerutil

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// Format identifies the upstream stream encoding.
type Format int

const (
	FormatSSE Format = iota
	FormatNDJSON
)

// sseDoneSentinel terminates OpenAI-style SSE streams.
const sseDoneSentinel = "[DONE]"

// EventReader yields one raw event payload per call so drivers can decode
// their vendor schema and translate it into canonical stream parts.
type EventReader struct {
	source  io.ReadCloser
	format  Format
	decoder *json.Decoder
	scanner *bufio.Reader
	done    bool
}

// NewEventReader constructs a reader for the given encoding.
func NewEventReader(r io.ReadCloser, format Format) *EventReader {
	reader := &EventReader{source: r, format: format}
	if format == FormatNDJSON {
		reader.decoder = json.NewDecoder(r)
	} else {
		reader.scanner = bufio.NewReaderSize(r, 64*1024)
	}
	return reader
}

// Next returns the next raw event payload. io.EOF signals a clean end of
// stream, io.ErrUnexpectedEOF a truncated one.
func (r *EventReader) Next() ([]byte, error) {
	if r.done {
		return nil, io.EOF
	}
	var raw []byte
	var err error
	switch r.format {
	case FormatNDJSON:
		raw, err = r.nextNDJSON()
	default:
		raw, err = r.nextSSE()
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			r.done = true
		}
		return nil, err
	}
	return raw, nil
}

func (r *EventReader) nextNDJSON() ([]byte, error) {
	var raw json.RawMessage
	if err := r.decoder.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (r *EventReader) nextSSE() ([]byte, error) {
	var data bytes.Buffer
	for {
		line, err := r.scanner.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				// ReadString hands back any partial final line with EOF.
				// An unterminated line or pending event data means the
				// payload was cut off.
				if strings.TrimSpace(line) != "" || data.Len() > 0 {
					return nil, io.ErrUnexpectedEOF
				}
				return nil, io.EOF
			}
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if data.Len() == 0 {
				continue
			}
			return data.Bytes(), nil
		}
		if strings.HasPrefix(line, "data:") {
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == sseDoneSentinel {
				return nil, io.EOF
			}
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(payload)
		}
	}
}

// Close releases the underlying reader.
func (r *EventReader) Close() error {
	r.done = true
	if r.source != nil {
		return r.source.Close()
	}
	return nil
}
