package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

const maxRequestBody = 64 << 10

// decodeBody calls field for every top-level key of the JSON object in the
// request body. Unknown keys must be skipped by field. An empty body is an
// empty object.
func decodeBody(r *http.Request, field func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		return &errBadRequest{err: err}
	}
	if len(data) > maxRequestBody {
		return &errBadRequest{err: errors.New("body too large")}
	}
	d := jx.DecodeBytes(data)
	switch d.Next() {
	case jx.Invalid:
		return nil
	case jx.Object:
	default:
		return &errBadRequest{err: errors.Errorf("expected object, got %s", d.Next())}
	}
	if err := d.Obj(field); err != nil {
		return &errBadRequest{err: err}
	}
	return nil
}

// readString accepts a string, a number literal or null.
func readString(d *jx.Decoder) (string, error) {
	switch t := d.Next(); t {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", errors.Errorf("expected string, got %s", t)
	}
}

func readInt(d *jx.Decoder) (int, error) {
	s, err := readString(d)
	if err != nil || s == "" {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Errorf("expected integer, got %q", s)
	}
	return n, nil
}

func readDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	s, err := readString(d)
	if err != nil || s == "" {
		return decimal.Zero, err
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Errorf("expected amount, got %q", s)
	}
	return v, nil
}

// stringFields decodes an object whose interesting keys are all strings.
func stringFields(r *http.Request, dst map[string]*string) error {
	return decodeBody(r, func(d *jx.Decoder, key string) error {
		p, ok := dst[key]
		if !ok {
			return d.Skip()
		}
		v, err := readString(d)
		if err != nil {
			return errors.Wrap(err, key)
		}
		*p = v
		return nil
	})
}
