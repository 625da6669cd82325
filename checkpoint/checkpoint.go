// Package checkpoint saves and restores network parameters in protobuf wire format.
//
// A checkpoint file is one message:
//
//	Checkpoint { 1: string name; 2: repeated Param params }
//	Param      { 1: packed varint shape; 2: packed double data }
//
// Params are stored in the order the network reports them.
package checkpoint

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"google.golang.org/protobuf/encoding/protowire"

	"go-attentiongan/tensor"
)

const (
	fieldName   protowire.Number = 1
	fieldParams protowire.Number = 2

	fieldShape protowire.Number = 1
	fieldData  protowire.Number = 2
)

// FileName is the file a network is stored in for a given label, e.g. "latest_net_G_A.ckpt".
func FileName(label, name string) string {
	return fmt.Sprintf("%s_net_%s.ckpt", label, name)
}

// Marshal encodes params under name.
func Marshal(name string, params []*tensor.Tensor) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldName, protowire.BytesType)
	b = protowire.AppendString(b, name)
	for _, p := range params {
		b = protowire.AppendTag(b, fieldParams, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalParam(p))
	}
	return b
}

func marshalParam(p *tensor.Tensor) []byte {
	var shape []byte
	for _, d := range p.GetShape() {
		shape = protowire.AppendVarint(shape, uint64(d))
	}
	data := make([]byte, 0, 8*tensor.Numel(p))
	for _, v := range p.GetData() {
		data = protowire.AppendFixed64(data, math.Float64bits(v))
	}

	var b []byte
	b = protowire.AppendTag(b, fieldShape, protowire.BytesType)
	b = protowire.AppendBytes(b, shape)
	b = protowire.AppendTag(b, fieldData, protowire.BytesType)
	b = protowire.AppendBytes(b, data)
	return b
}

// stored is a decoded parameter.
type stored struct {
	shape []int
	data  []float64
}

// Unmarshal decodes a checkpoint message. Unknown fields are skipped.
func Unmarshal(b []byte) (name string, params [][]float64, shapes [][]int, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", nil, nil, fmt.Errorf("checkpoint: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return "", nil, nil, fmt.Errorf("checkpoint: bad name: %w", protowire.ParseError(n))
			}
			name = v
			b = b[n:]
		case num == fieldParams && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return "", nil, nil, fmt.Errorf("checkpoint: bad param: %w", protowire.ParseError(n))
			}
			p, err := unmarshalParam(v)
			if err != nil {
				return "", nil, nil, fmt.Errorf("checkpoint: param %d: %w", len(params), err)
			}
			params = append(params, p.data)
			shapes = append(shapes, p.shape)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return "", nil, nil, fmt.Errorf("checkpoint: bad field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return name, params, shapes, nil
}

func unmarshalParam(b []byte) (stored, error) {
	var p stored
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return p, protowire.ParseError(n)
		}
		b = b[n:]
		if typ != protowire.BytesType || (num != fieldShape && num != fieldData) {
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return p, protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}

		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return p, protowire.ParseError(n)
		}
		b = b[n:]

		if num == fieldShape {
			for len(packed) > 0 {
				d, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return p, protowire.ParseError(m)
				}
				p.shape = append(p.shape, int(d))
				packed = packed[m:]
			}
			continue
		}
		if len(packed)%8 != 0 {
			return p, fmt.Errorf("packed data length %d is not a multiple of 8", len(packed))
		}
		p.data = make([]float64, 0, len(packed)/8)
		for len(packed) > 0 {
			bits, m := protowire.ConsumeFixed64(packed)
			if m < 0 {
				return p, protowire.ParseError(m)
			}
			p.data = append(p.data, math.Float64frombits(bits))
			packed = packed[m:]
		}
	}
	return p, nil
}

// Save writes params to path, creating parent directories.
func Save(path, name string, params []*tensor.Tensor) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err := os.WriteFile(path, Marshal(name, params), 0o644); err != nil {
		return fmt.Errorf("checkpoint: failed to write %s: %w", path, err)
	}
	return nil
}

// Load reads path into params in place. The stored parameters must match params
// in count and shape; nothing is modified otherwise.
func Load(path, name string, params []*tensor.Tensor) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	storedName, data, shapes, err := Unmarshal(b)
	if err != nil {
		return fmt.Errorf("checkpoint %s: %w", path, err)
	}
	if storedName != name {
		return fmt.Errorf("checkpoint %s: holds network %q, want %q", path, storedName, name)
	}
	if len(data) != len(params) {
		return fmt.Errorf("checkpoint %s: holds %d parameters, network has %d", path, len(data), len(params))
	}
	for i, p := range params {
		if !sameShape(shapes[i], p.GetShape()) || len(data[i]) != tensor.Numel(p) {
			return fmt.Errorf("checkpoint %s: parameter %d has shape %v, network expects %v", path, i, shapes[i], p.GetShape())
		}
	}
	for i, p := range params {
		copy(p.GetData(), data[i])
	}
	return nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
