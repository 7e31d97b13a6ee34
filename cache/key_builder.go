package cache

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

var (
	// ErrInvalidOperation is returned for an empty or malformed operation name.
	ErrInvalidOperation = errors.New("cache: invalid operation name")

	// ErrInvalidParam is returned when a parameter name or value cannot be encoded.
	ErrInvalidParam = errors.New("cache: invalid key parameter")
)

// Param is a named key parameter.
type Param struct {
	Name  string
	Value any
}

// P is shorthand for Param{Name: name, Value: value}.
func P(name string, value any) Param {
	return Param{Name: name, Value: value}
}

// KeyBuilder derives deterministic cache keys of the form
// "operation::name=value::name=value".
//
// Operations registered with Register emit their parameters in declaration
// order and reject unknown or missing parameters. Unregistered operations
// emit parameters sorted by name. Values are canonicalized so that logically
// identical requests produce identical keys:
//
//   - integers of any Go type, *big.Int and numeric strings ("007", " +7 ")
//     become their minimal decimal form
//   - uuid.UUID values and UUID strings become canonical lowercase
//   - bools become "true" or "false"
//   - other strings are escaped so ':' and '=' never appear unescaped
//
// Values carry no type marker: a value and its canonical text form (7 and
// "7", true and "true", a uuid.UUID and its string) build the same key.
// Values whose canonical texts differ never share a key.
type KeyBuilder struct {
	mu         sync.RWMutex
	operations map[string][]string
}

// NewKeyBuilder returns an empty builder.
func NewKeyBuilder() *KeyBuilder {
	return &KeyBuilder{operations: make(map[string][]string)}
}

// Register declares the parameter order for operation. Registering the same
// operation again replaces its declaration.
func (b *KeyBuilder) Register(operation string, params ...string) error {
	if err := validateOperation(operation); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(params))
	for _, name := range params {
		if err := validateParamName(name); err != nil {
			return err
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate parameter %q for %s", ErrInvalidParam, name, operation)
		}
		seen[name] = struct{}{}
	}

	b.mu.Lock()
	b.operations[operation] = append([]string(nil), params...)
	b.mu.Unlock()
	return nil
}

// MustRegister is like Register but panics on error.
func (b *KeyBuilder) MustRegister(operation string, params ...string) *KeyBuilder {
	if err := b.Register(operation, params...); err != nil {
		panic(err)
	}
	return b
}

// Build returns the key for operation and params.
func (b *KeyBuilder) Build(operation string, params ...Param) (string, error) {
	if err := validateOperation(operation); err != nil {
		return "", err
	}

	values := make(map[string]string, len(params))
	for _, p := range params {
		if err := validateParamName(p.Name); err != nil {
			return "", err
		}
		if _, dup := values[p.Name]; dup {
			return "", fmt.Errorf("%w: duplicate parameter %q", ErrInvalidParam, p.Name)
		}
		encoded, err := normalizeValue(p.Value)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrInvalidParam, p.Name, err)
		}
		values[p.Name] = encoded
	}

	b.mu.RLock()
	order, registered := b.operations[operation]
	b.mu.RUnlock()

	if registered {
		for _, p := range params {
			if !contains(order, p.Name) {
				return "", fmt.Errorf("%w: unknown parameter %q for %s", ErrInvalidParam, p.Name, operation)
			}
		}
		for _, name := range order {
			if _, ok := values[name]; !ok {
				return "", fmt.Errorf("%w: missing parameter %q for %s", ErrInvalidParam, name, operation)
			}
		}
	} else {
		order = make([]string, 0, len(values))
		for name := range values {
			order = append(order, name)
		}
		sort.Strings(order)
	}

	var sb strings.Builder
	sb.WriteString(operation)
	for _, name := range order {
		sb.WriteString(KeySeparator)
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(values[name])
	}
	return sb.String(), nil
}

func validateOperation(operation string) error {
	if operation == "" || strings.ContainsAny(operation, ":=") {
		return fmt.Errorf("%w: %q", ErrInvalidOperation, operation)
	}
	return nil
}

func validateParamName(name string) error {
	if name == "" || strings.ContainsAny(name, ":=%") {
		return fmt.Errorf("%w: bad name %q", ErrInvalidParam, name)
	}
	return nil
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

var keyEscaper = strings.NewReplacer("%", "%25", ":", "%3A", "=", "%3D")

// normalizeValue returns the canonical encoding of a parameter value.
func normalizeValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", errors.New("nil value")
	case string:
		return normalizeString(val), nil
	case uuid.UUID:
		return val.String(), nil
	case *big.Int:
		if val == nil {
			return "", errors.New("nil big.Int")
		}
		return val.String(), nil
	case bool:
		if val {
			return "true", nil
		}
		return "false", nil
	case fmt.Stringer:
		return normalizeString(val.String()), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(rv.Int()).String(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return new(big.Int).SetUint64(rv.Uint()).String(), nil
	case reflect.String:
		return normalizeString(rv.String()), nil
	case reflect.Ptr:
		if rv.IsNil() {
			return "", errors.New("nil pointer")
		}
		return normalizeValue(rv.Elem().Interface())
	}

	return "", fmt.Errorf("unsupported type %T", v)
}

func normalizeString(s string) string {
	if n, ok := parseInteger(s); ok {
		return n.String()
	}
	if id, err := uuid.Parse(strings.TrimSpace(s)); err == nil {
		return id.String()
	}
	return keyEscaper.Replace(s)
}

// parseInteger accepts optional surrounding whitespace, an optional sign and
// decimal digits of any length.
func parseInteger(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	digits := strings.TrimLeft(s, "+-")
	if len(s)-len(digits) > 1 || digits == "" {
		return nil, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return nil, false
		}
	}
	n, ok := new(big.Int).SetString(s, 10)
	return n, ok
}
