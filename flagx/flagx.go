// Package flagx binds cobra flags to option structs the way gin binds requests.
//
//	type ReportOptions struct {
//	    Format  string        `flag:"format,f" usage:"json or text" default:"json"`
//	    Timeout time.Duration `flag:"timeout" default:"10s"`
//	}
//
//	flagx.BindFlags(cmd, &ReportOptions{})     // when building the command
//	flagx.ParseFlags(cmd, &opts)               // inside RunE
package flagx

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/KOMKZ/go-yogan-cache/validator"
	"github.com/spf13/cobra"
)

var durationType = reflect.TypeOf(time.Duration(0))

// BindFlags registers one flag per tagged field of target
func BindFlags(cmd *cobra.Command, target interface{}) error {
	t, err := structType(target)
	if err != nil {
		return err
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("flag")
		if tag == "" {
			continue
		}
		name, short, _ := strings.Cut(tag, ",")
		if err := registerFlag(cmd, field, name, short); err != nil {
			return err
		}
		if field.Tag.Get("required") == "true" {
			_ = cmd.MarkFlagRequired(name)
		}
	}
	return nil
}

func registerFlag(cmd *cobra.Command, field reflect.StructField, name, short string) error {
	usage := field.Tag.Get("usage")
	def := field.Tag.Get("default")
	flags := cmd.Flags()

	if field.Type == durationType {
		d := time.Duration(0)
		if def != "" {
			parsed, err := time.ParseDuration(def)
			if err != nil {
				return fmt.Errorf("flag %s: invalid default %q: %w", name, def, err)
			}
			d = parsed
		}
		flags.DurationP(name, short, d, usage)
		return nil
	}

	switch field.Type.Kind() {
	case reflect.String:
		flags.StringP(name, short, def, usage)
	case reflect.Int:
		n := 0
		if def != "" {
			parsed, err := strconv.Atoi(def)
			if err != nil {
				return fmt.Errorf("flag %s: invalid default %q: %w", name, def, err)
			}
			n = parsed
		}
		flags.IntP(name, short, n, usage)
	case reflect.Bool:
		b, _ := strconv.ParseBool(def)
		flags.BoolP(name, short, b, usage)
	case reflect.Slice:
		if field.Type.Elem().Kind() != reflect.String {
			return fmt.Errorf("flag %s: unsupported slice element type: %s", name, field.Type.Elem().Kind())
		}
		var vals []string
		if def != "" {
			vals = strings.Split(def, ",")
		}
		flags.StringSliceP(name, short, vals, usage)
	default:
		return fmt.Errorf("flag %s: unsupported field type: %s", name, field.Type.Kind())
	}
	return nil
}

// ParseFlags copies flag values into target. A target implementing
// validator.Validatable is validated afterwards.
func ParseFlags(cmd *cobra.Command, target interface{}) error {
	if _, err := structType(target); err != nil {
		return err
	}
	v := reflect.ValueOf(target).Elem()
	t := v.Type()
	flags := cmd.Flags()

	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		tag := t.Field(i).Tag.Get("flag")
		if tag == "" || !field.CanSet() {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")

		var err error
		switch {
		case field.Type() == durationType:
			var d time.Duration
			d, err = flags.GetDuration(name)
			field.SetInt(int64(d))
		case field.Kind() == reflect.String:
			var s string
			s, err = flags.GetString(name)
			field.SetString(s)
		case field.Kind() == reflect.Int:
			var n int
			n, err = flags.GetInt(name)
			field.SetInt(int64(n))
		case field.Kind() == reflect.Bool:
			var b bool
			b, err = flags.GetBool(name)
			field.SetBool(b)
		case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
			var ss []string
			ss, err = flags.GetStringSlice(name)
			field.Set(reflect.ValueOf(ss))
		default:
			err = fmt.Errorf("unsupported field type: %s", field.Kind())
		}
		if err != nil {
			return fmt.Errorf("parse field %s: %w", t.Field(i).Name, err)
		}
	}

	if vt, ok := target.(validator.Validatable); ok {
		return validator.Validate(vt, nil)
	}
	return nil
}

func structType(target interface{}) (reflect.Type, error) {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("target must be a pointer to struct")
	}
	return v.Elem().Type(), nil
}
