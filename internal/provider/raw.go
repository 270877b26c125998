package provider

import (
	"fmt"

	"github.com/antonholmquist/jason"
)

// RawResponse is the payload a provider's Search returns. It is a closed
// variant: only the three shapes below implement it, and adapters construct
// the one matching their upstream API.
type RawResponse interface {
	shape() string
}

// ListShape is a bare JSON array of records.
type ListShape struct{ Records []*jason.Object }

// ResultsShape is an object carrying its records under a results-style key
// ("results", "photos", "hits", "pages").
type ResultsShape struct{ Records []*jason.Object }

// AssetsShape is the AmbientCG-style {"foundAssets": [...]} payload.
type AssetsShape struct{ Records []*jason.Object }

func (ListShape) shape() string    { return "list" }
func (ResultsShape) shape() string { return "results" }
func (AssetsShape) shape() string  { return "assets" }

// Records resolves any RawResponse to its record list.
func Records(raw RawResponse) []*jason.Object {
	switch r := raw.(type) {
	case ListShape:
		return r.Records
	case ResultsShape:
		return r.Records
	case AssetsShape:
		return r.Records
	default:
		return nil
	}
}

// parseList decodes a top-level JSON array.
func parseList(name string, body []byte) (ListShape, error) {
	v, err := jason.NewValueFromBytes(body)
	if err != nil {
		return ListShape{}, NewError(name, KindMalformed, 0, fmt.Errorf("decoding list: %w", err))
	}
	values, err := v.Array()
	if err != nil {
		return ListShape{}, NewError(name, KindMalformed, 0, fmt.Errorf("expected array: %w", err))
	}
	return ListShape{Records: objects(values)}, nil
}

// parseKeyed decodes an object and pulls the record array stored at key.
// A missing key means "no results", not a malformed payload.
func parseKeyed(name string, body []byte, key ...string) ([]*jason.Object, error) {
	obj, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return nil, NewError(name, KindMalformed, 0, fmt.Errorf("decoding object: %w", err))
	}
	v, err := obj.GetValue(key...)
	if err != nil {
		return nil, nil
	}
	values, err := v.Array()
	if err != nil {
		return nil, NewError(name, KindMalformed, 0, fmt.Errorf("field %v is not an array: %w", key, err))
	}
	return objects(values), nil
}

// objects keeps the array elements that are JSON objects. Anything else
// (null, numbers, strings) is a bad record and is dropped on its own.
func objects(values []*jason.Value) []*jason.Object {
	records := make([]*jason.Object, 0, len(values))
	for _, v := range values {
		o, err := v.Object()
		if err != nil {
			continue
		}
		records = append(records, o)
	}
	return records
}

// str reads an optional string field, returning "" when absent or mistyped.
func str(o *jason.Object, keys ...string) string {
	s, err := o.GetString(keys...)
	if err != nil {
		return ""
	}
	return s
}

// num reads an optional integer field. Numeric strings and ids are common
// across providers, so both JSON numbers and strings are accepted.
func num(o *jason.Object, keys ...string) int {
	if n, err := o.GetInt64(keys...); err == nil {
		return int(n)
	}
	if f, err := o.GetFloat64(keys...); err == nil {
		return int(f)
	}
	return 0
}

// idString reads an id that may be either a JSON string or a number.
func idString(o *jason.Object, keys ...string) string {
	if s, err := o.GetString(keys...); err == nil {
		return s
	}
	if n, err := o.GetInt64(keys...); err == nil {
		return fmt.Sprintf("%d", n)
	}
	return ""
}
