package model

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of proto/checkpoint.proto.
const (
	checkpointTensorsField protowire.Number = 1

	tensorNameField  protowire.Number = 1
	tensorShapeField protowire.Number = 2
	tensorDataField  protowire.Number = 3
)

// ErrCorruptCheckpoint is returned when the checkpoint bytes cannot be decoded.
var ErrCorruptCheckpoint = errors.New("corrupt checkpoint")

// LoadCheckpoint reads a checkpoint file into named tensors.
func LoadCheckpoint(path string) (map[string]Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	tensors, err := ReadCheckpoint(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", path, err)
	}
	return tensors, nil
}

// ReadCheckpoint decodes a protobuf-encoded Checkpoint message.
func ReadCheckpoint(r io.Reader) (map[string]Tensor, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrCorruptCheckpoint)
	}

	tensors := make(map[string]Tensor)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, corrupt(protowire.ParseError(n))
		}
		b = b[n:]

		if num != checkpointTensorsField || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, corrupt(protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		msg, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, corrupt(protowire.ParseError(n))
		}
		b = b[n:]

		name, t, err := decodeTensor(msg)
		if err != nil {
			return nil, err
		}
		if _, dup := tensors[name]; dup {
			return nil, fmt.Errorf("%w: duplicate tensor %q", ErrCorruptCheckpoint, name)
		}
		tensors[name] = t
	}
	return tensors, nil
}

func decodeTensor(b []byte) (string, Tensor, error) {
	var (
		name string
		t    Tensor
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", Tensor{}, corrupt(protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == tensorNameField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return "", Tensor{}, corrupt(protowire.ParseError(n))
			}
			name = string(v)
			b = b[n:]

		case num == tensorShapeField && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return "", Tensor{}, corrupt(protowire.ParseError(n))
			}
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return "", Tensor{}, corrupt(protowire.ParseError(m))
				}
				t.Shape = append(t.Shape, int(int64(v)))
				packed = packed[m:]
			}
			b = b[n:]

		case num == tensorShapeField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return "", Tensor{}, corrupt(protowire.ParseError(n))
			}
			t.Shape = append(t.Shape, int(int64(v)))
			b = b[n:]

		case num == tensorDataField && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return "", Tensor{}, corrupt(protowire.ParseError(n))
			}
			if len(packed)%4 != 0 {
				return "", Tensor{}, fmt.Errorf("%w: packed float data of %d bytes", ErrCorruptCheckpoint, len(packed))
			}
			if t.Data == nil {
				t.Data = make([]float32, 0, len(packed)/4)
			}
			for len(packed) > 0 {
				v, m := protowire.ConsumeFixed32(packed)
				if m < 0 {
					return "", Tensor{}, corrupt(protowire.ParseError(m))
				}
				t.Data = append(t.Data, math.Float32frombits(v))
				packed = packed[m:]
			}
			b = b[n:]

		case num == tensorDataField && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return "", Tensor{}, corrupt(protowire.ParseError(n))
			}
			t.Data = append(t.Data, math.Float32frombits(v))
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return "", Tensor{}, corrupt(protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if name == "" {
		return "", Tensor{}, fmt.Errorf("%w: tensor without a name", ErrCorruptCheckpoint)
	}
	if err := t.Validate(); err != nil {
		return "", Tensor{}, fmt.Errorf("%w: tensor %q: %v", ErrCorruptCheckpoint, name, err)
	}
	return name, t, nil
}

// WriteCheckpoint encodes tensors as a Checkpoint message, ordered by name.
func WriteCheckpoint(w io.Writer, tensors map[string]Tensor) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		t := tensors[name]
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tensor %q: %w", name, err)
		}

		var msg []byte
		msg = protowire.AppendTag(msg, tensorNameField, protowire.BytesType)
		msg = protowire.AppendString(msg, name)

		var shape []byte
		for _, d := range t.Shape {
			shape = protowire.AppendVarint(shape, uint64(d))
		}
		msg = protowire.AppendTag(msg, tensorShapeField, protowire.BytesType)
		msg = protowire.AppendBytes(msg, shape)

		data := make([]byte, 0, 4*len(t.Data))
		for _, v := range t.Data {
			data = protowire.AppendFixed32(data, math.Float32bits(v))
		}
		msg = protowire.AppendTag(msg, tensorDataField, protowire.BytesType)
		msg = protowire.AppendBytes(msg, data)

		var rec []byte
		rec = protowire.AppendTag(rec, checkpointTensorsField, protowire.BytesType)
		rec = protowire.AppendBytes(rec, msg)
		if _, err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %v", ErrCorruptCheckpoint, err)
}
