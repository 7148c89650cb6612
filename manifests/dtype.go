package manifests

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ByteOrder is the first character of a NumPy type string.
type ByteOrder byte

const (
	NotRelevant  ByteOrder = '|'
	LittleEndian ByteOrder = '<'
	BigEndian    ByteOrder = '>'
)

// Kind is the basic type character of a NumPy type string.
type Kind byte

const (
	KindBool      Kind = 'b'
	KindInt       Kind = 'i'
	KindUint      Kind = 'u'
	KindFloat     Kind = 'f'
	KindComplex   Kind = 'c'
	KindTimedelta Kind = 'm'
	KindDatetime  Kind = 'M'
	KindBytes     Kind = 'S'
	KindUnicode   Kind = 'U'
	KindVoid      Kind = 'V'
)

// Dtype describes the element type of an array using the NumPy array
// protocol type string, e.g. "<i8", "|b1", ">f4" or "<M8[ns]".
type Dtype struct {
	ByteOrder ByteOrder
	Kind      Kind
	// ItemSize is the size given in the type string: bytes, or characters
	// for unicode strings.
	ItemSize int
	// Unit holds the bracketed time unit of datetime and timedelta types.
	Unit string
}

var (
	_ json.Marshaler   = Dtype{}
	_ json.Unmarshaler = (*Dtype)(nil)
)

// ParseDtype parses a NumPy type string. Single-byte and byte-string types
// are normalized to the "|" byte order, as NumPy itself reports them.
func ParseDtype(s string) (Dtype, error) {
	if len(s) < 3 {
		return Dtype{}, errors.Newf("invalid dtype: %q", s)
	}

	dt := Dtype{ByteOrder: ByteOrder(s[0]), Kind: Kind(s[1])}
	switch dt.ByteOrder {
	case NotRelevant, LittleEndian, BigEndian:
	default:
		return Dtype{}, errors.Newf("unsupported byte order %q in dtype %q", s[0], s)
	}

	sizeStr := s[2:]
	if i := strings.IndexByte(sizeStr, '['); i >= 0 {
		dt.Unit = sizeStr[i:]
		sizeStr = sizeStr[:i]
		if dt.Kind != KindDatetime && dt.Kind != KindTimedelta {
			return Dtype{}, errors.Newf("unit %s is only valid for datetime types: %q", dt.Unit, s)
		}
		if len(dt.Unit) < 3 || !strings.HasSuffix(dt.Unit, "]") {
			return Dtype{}, errors.Newf("invalid unit in dtype: %q", s)
		}
	}

	size, err := strconv.Atoi(sizeStr)
	if err != nil || size < 0 {
		return Dtype{}, errors.Newf("invalid size in dtype: %q", s)
	}
	dt.ItemSize = size

	switch dt.Kind {
	case KindBool, KindInt, KindUint, KindFloat, KindComplex, KindTimedelta, KindDatetime:
		if size == 0 {
			return Dtype{}, errors.Newf("zero size in dtype: %q", s)
		}
	case KindBytes, KindUnicode, KindVoid:
	default:
		return Dtype{}, errors.Newf("unsupported dtype kind: %c in %q", dt.Kind, s)
	}

	if dt.byteOrderIrrelevant() {
		dt.ByteOrder = NotRelevant
	} else if dt.ByteOrder == NotRelevant {
		return Dtype{}, errors.Newf("dtype %q needs a byte order", s)
	}
	return dt, nil
}

// byteOrderIrrelevant reports whether elements of dt are single bytes or
// byte strings, whose layout does not depend on the byte order.
func (dt Dtype) byteOrderIrrelevant() bool {
	switch dt.Kind {
	case KindBool, KindBytes, KindVoid:
		return true
	case KindInt, KindUint:
		return dt.ItemSize == 1
	}
	return false
}

// MustParseDtype is ParseDtype for constant type strings.
func MustParseDtype(s string) Dtype {
	dt, err := ParseDtype(s)
	if err != nil {
		panic(err)
	}
	return dt
}

// IsZero reports whether dt is the zero Dtype.
func (dt Dtype) IsZero() bool { return dt == Dtype{} }

// String returns the canonical type string.
func (dt Dtype) String() string {
	return fmt.Sprintf("%c%c%d%s", dt.ByteOrder, dt.Kind, dt.ItemSize, dt.Unit)
}

// Name returns a simplified name such as "float32", "bool" or "int64".
func (dt Dtype) Name() string {
	switch dt.Kind {
	case KindBool:
		return "bool"
	case KindInt:
		return fmt.Sprintf("int%d", dt.ItemSize*8)
	case KindUint:
		return fmt.Sprintf("uint%d", dt.ItemSize*8)
	case KindFloat:
		return fmt.Sprintf("float%d", dt.ItemSize*8)
	case KindComplex:
		return fmt.Sprintf("complex%d", dt.ItemSize*8)
	case KindDatetime:
		return "datetime64" + dt.Unit
	case KindTimedelta:
		return "timedelta64" + dt.Unit
	case KindBytes:
		return fmt.Sprintf("bytes%d", dt.ItemSize)
	case KindUnicode:
		return fmt.Sprintf("str%d", dt.ItemSize)
	default:
		return fmt.Sprintf("void%d", dt.ItemSize)
	}
}

// ElementBytes is the storage size of one element in bytes. Unicode type
// strings count UCS4 characters rather than bytes.
func (dt Dtype) ElementBytes() int {
	if dt.Kind == KindUnicode {
		return 4 * dt.ItemSize
	}
	return dt.ItemSize
}

// Equal compares type, size and unit, and the byte order where it matters.
func (dt Dtype) Equal(o Dtype) bool {
	if dt.Kind != o.Kind || dt.ItemSize != o.ItemSize || dt.Unit != o.Unit {
		return false
	}
	if dt.byteOrderIrrelevant() {
		return true
	}
	return dt.ByteOrder == o.ByteOrder
}

func (dt Dtype) MarshalJSON() ([]byte, error) {
	if dt.IsZero() {
		return nil, errors.New("cannot encode an empty dtype")
	}
	return []byte(strconv.Quote(dt.String())), nil
}

func (dt *Dtype) UnmarshalJSON(d []byte) error {
	var s string
	if err := json.Unmarshal(d, &s); err != nil {
		return errors.Wrapf(err, "dtype must be a string")
	}
	t, err := ParseDtype(s)
	if err != nil {
		return err
	}
	*dt = t
	return nil
}
