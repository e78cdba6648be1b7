// Package config overlays environment variables onto configuration structs.
//
// Variable names follow the pattern:
//
//	{Prefix}_{STAGE}_{FIELD}
//
// Named nested structs add their field name as a segment; embedded structs
// are flattened. Field names are converted from CamelCase to
// UPPER_SNAKE_CASE:
//
//	ExitTimeout  → EXIT_TIMEOUT
//	MaxInFlight  → MAX_IN_FLIGHT
//	URL          → URL
//
// Supported field types: string, bool, int*, uint*, float*, time.Duration.
// Other fields (funcs, interfaces, pointers, loggers) are skipped.
//
// Examples with the default prefix:
//
//	UBINDER_BINDING_EXIT_TIMEOUT=5s   // ubinder.Config, stage "binding"
//	UBINDER_RPC_MAX_IN_FLIGHT=64      // rpc.Config, stage "rpc"
//	UBINDER_REDIS_ADDR=localhost:6379 // redispipe.Config, stage "redis"
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// DefaultPrefix is used when Loader.Prefix is empty.
const DefaultPrefix = "UBINDER"

var durationType = reflect.TypeOf(time.Duration(0))

// Loader reads environment variables into configuration structs.
type Loader struct {
	// Prefix for variable names. Defaults to DefaultPrefix.
	Prefix string
	// Lookup replaces os.LookupEnv, mainly for tests.
	Lookup func(key string) (string, bool)
}

// Load overlays the variables for stage onto the struct pointed to by dst.
// Fields without a matching variable keep their current value, so Load is
// meant to run after programmatic defaults have been set.
func (l Loader) Load(stage string, dst any) error {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: dst must be a pointer to a struct, got %T", dst)
	}
	return walk(l.stagePrefix(stage), v.Elem(), func(key string, fv reflect.Value) error {
		raw, ok := l.lookup(key)
		if !ok {
			return nil
		}
		if err := set(fv, raw); err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		return nil
	})
}

// Keys lists the variable names Load would consult for dst, which may be a
// struct or a pointer to one.
func (l Loader) Keys(stage string, dst any) []string {
	v := reflect.ValueOf(dst)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	// Keys only needs names; walk a zero value so unaddressable inputs work.
	zero := reflect.New(v.Type()).Elem()
	var keys []string
	_ = walk(l.stagePrefix(stage), zero, func(key string, _ reflect.Value) error {
		keys = append(keys, key)
		return nil
	})
	return keys
}

// Load uses a Loader with the default prefix.
func Load(stage string, dst any) error {
	return Loader{}.Load(stage, dst)
}

// Keys uses a Loader with the default prefix.
func Keys(stage string, dst any) []string {
	return Loader{}.Keys(stage, dst)
}

func (l Loader) stagePrefix(stage string) string {
	prefix := l.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + "_" + normalizeStage(stage)
}

func (l Loader) lookup(key string) (string, bool) {
	if l.Lookup != nil {
		return l.Lookup(key)
	}
	return os.LookupEnv(key)
}

// walk calls visit for every supported leaf field of v with its variable name.
func walk(prefix string, v reflect.Value, visit func(key string, fv reflect.Value) error) error {
	t := v.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		fv := v.Field(i)

		// Exported fields of unexported embedded structs are promoted.
		if !field.IsExported() && !(field.Anonymous && field.Type.Kind() == reflect.Struct) {
			continue
		}

		key := prefix
		if !field.Anonymous {
			key += "_" + toUpperSnake(field.Name)
		}

		switch {
		case field.Type == durationType || supported(field.Type.Kind()):
			if err := visit(key, fv); err != nil {
				return err
			}
		case field.Type.Kind() == reflect.Struct:
			if err := walk(key, fv, visit); err != nil {
				return err
			}
		}
	}
	return nil
}

func supported(k reflect.Kind) bool {
	switch k {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func set(v reflect.Value, raw string) error {
	if v.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		v.SetInt(int64(d))
		return nil
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(f)
	}
	return nil
}

// normalizeStage uppercases letters, maps '-', ' ' and '_' to '_', and drops
// everything else.
func normalizeStage(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(unicode.ToUpper(r))
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == ' ' || r == '_':
			b.WriteByte('_')
		}
	}
	return b.String()
}

// toUpperSnake converts a Go field name to UPPER_SNAKE_CASE, keeping
// acronyms together: URLPath → URL_PATH, MaxInFlight → MAX_IN_FLIGHT.
func toUpperSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
