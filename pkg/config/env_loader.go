/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/carverauto/presenced/pkg/logger"
)

var (
	// ErrDstMustBeNonNilPointer indicates that the destination must be a non-nil pointer.
	ErrDstMustBeNonNilPointer = errors.New("dst must be a non-nil pointer")
	// ErrDstMustBePointerToStruct indicates that the destination must be a pointer to a struct.
	ErrDstMustBePointerToStruct = errors.New("dst must be a pointer to a struct")
)

// EnvLoader loads configuration from environment variables. Nested struct
// fields use underscore separation: PRESENCED_NOTIFIER_BROKER maps to
// config.Notifier.Broker. Map and slice fields take a JSON value.
type EnvLoader struct {
	logger logger.Logger
	prefix string
}

// NewEnvLoader creates an environment variable config loader.
func NewEnvLoader(log logger.Logger, prefix string) *EnvLoader {
	return &EnvLoader{
		logger: log,
		prefix: prefix,
	}
}

// Load implements Loader by reading from environment variables.
func (e *EnvLoader) Load(_ context.Context, _ string, dst interface{}) error {
	// A complete JSON config in a single env var wins.
	if jsonConfig := os.Getenv(e.prefix + "CONFIG_JSON"); jsonConfig != "" {
		if err := json.Unmarshal([]byte(jsonConfig), dst); err != nil {
			return fmt.Errorf("failed to unmarshal %sCONFIG_JSON: %w", e.prefix, err)
		}

		return nil
	}

	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return ErrDstMustBeNonNilPointer
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return ErrDstMustBePointerToStruct
	}

	e.loadStruct(v, e.prefix)

	return nil
}

func (e *EnvLoader) loadStruct(v reflect.Value, prefix string) {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		jsonTag := fieldType.Tag.Get("json")
		if jsonTag == "" || jsonTag == "-" {
			continue
		}

		fieldName := strings.Split(jsonTag, ",")[0]
		envName := prefix + strings.ToUpper(fieldName)

		// Recurse into nested structs so their fields get their own vars.
		if nested := structValue(field); nested.IsValid() {
			e.loadStruct(nested, envName+"_")
			continue
		}

		if err := e.setField(field, envName); err != nil {
			e.logger.Debug().
				Str("field", fieldName).
				Str("env", envName).
				Err(err).
				Msg("Failed to set field from environment variable")
		}
	}
}

// structValue unwraps a plain struct field (or pointer to one), allocating
// nil pointers on demand. Types with custom JSON unmarshaling are excluded.
func structValue(field reflect.Value) reflect.Value {
	t := field.Type()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return reflect.Value{}
	}

	if reflect.PointerTo(t).Implements(reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()) {
		return reflect.Value{}
	}

	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			field.Set(reflect.New(t))
		}

		return field.Elem()
	}

	return field
}

func (e *EnvLoader) setField(field reflect.Value, envName string) error {
	envValue := os.Getenv(envName)
	if envValue == "" {
		return nil
	}

	// Custom unmarshalers (e.g. models.Duration) and composite fields are
	// fed through encoding/json; bare strings get quoted first.
	if field.Kind() == reflect.Map || field.Kind() == reflect.Slice ||
		field.Addr().Type().Implements(reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()) {
		raw := envValue
		if !json.Valid([]byte(raw)) {
			quoted, err := json.Marshal(raw)
			if err != nil {
				return err
			}

			raw = string(quoted)
		}

		return json.Unmarshal([]byte(raw), field.Addr().Interface())
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(envValue, 10, 64)
		if err != nil {
			return err
		}

		field.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(envValue)
		if err != nil {
			return err
		}

		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported field kind %s for %s", field.Kind(), envName)
	}

	return nil
}
