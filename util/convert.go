package util

import (
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack"
)

// ToPageBytes encodes obj with msgpack and pads the result to a full page.
// The encoded form must fit in one page.
func ToPageBytes[T any](obj T, pageSize int) ([]byte, error) {
	data, err := msgpack.Marshal(obj)
	if err != nil {
		return nil, errors.Wrap(err, "encoding page struct")
	}

	if len(data) > pageSize {
		return nil, errors.Errorf("encoded struct is %d bytes, page is %d", len(data), pageSize)
	}

	res := make([]byte, pageSize)
	copy(res, data)
	return res, nil
}

// ToStruct decodes a page-sized buffer into T. Trailing padding after the
// msgpack value is ignored.
func ToStruct[T any](data []byte) (T, error) {
	var res T
	if err := msgpack.Unmarshal(data, &res); err != nil {
		return res, errors.Wrap(err, "decoding page struct")
	}
	return res, nil
}
