package file

import (
	"encoding"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

//FieldSetMapper converts a FieldSet into an item
type FieldSetMapper interface {
	MapFieldSet(fs FieldSet) (interface{}, error)
}

type FieldSetMapperFunc func(fs FieldSet) (interface{}, error)

func (f FieldSetMapperFunc) MapFieldSet(fs FieldSet) (interface{}, error) {
	return f(fs)
}

//BeanFieldSetMapper maps a FieldSet onto a new instance of a struct type.
//A struct field receives the value named by its `field` tag, or by its own name compared case-insensitively;
//`field:"-"` excludes it. Names absent from the FieldSet leave the field zero,
//unless the tag carries the required option, e.g. `field:"amount,required"`.
type BeanFieldSetMapper struct {
	structType reflect.Type
	fields     []beanField
}

type beanField struct {
	name     string
	required bool
	index    int
	tf       reflect.StructField
}

//ErrFieldMissing a required field has no value in the FieldSet
var ErrFieldMissing = errors.New("field missing")

var (
	timeType          = reflect.TypeOf(time.Time{})
	textUnmarshalType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

//NewBeanFieldSetMapper create a mapper producing pointers to the struct type of prototype
func NewBeanFieldSetMapper(prototype interface{}) *BeanFieldSetMapper {
	tp := reflect.TypeOf(prototype)
	if tp != nil && tp.Kind() == reflect.Ptr {
		tp = tp.Elem()
	}
	if tp == nil || tp.Kind() != reflect.Struct {
		panic("the underlying type of prototype must be struct")
	}
	mapper := &BeanFieldSetMapper{structType: tp}
	for i := 0; i < tp.NumField(); i++ {
		tf := tp.Field(i)
		if tf.PkgPath != "" {
			continue
		}
		name, opts, _ := strings.Cut(tf.Tag.Get("field"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(tf.Name)
		}
		mapper.fields = append(mapper.fields, beanField{name: name, required: opts == "required", index: i, tf: tf})
	}
	return mapper
}

func (m *BeanFieldSetMapper) MapFieldSet(fs FieldSet) (interface{}, error) {
	item := reflect.New(m.structType)
	for _, f := range m.fields {
		raw, ok := lookup(fs, f.name)
		if !ok {
			if f.required {
				return nil, &FieldConversionError{Field: f.name, Err: ErrFieldMissing}
			}
			continue
		}
		if err := setValue(raw, item.Elem().Field(f.index).Addr(), f.tf.Type, f.tf.Tag); err != nil {
			return nil, &FieldConversionError{Field: f.name, Value: raw, Err: err}
		}
	}
	return item.Interface(), nil
}

//RequiredFields names of the fields tagged required
func (m *BeanFieldSetMapper) RequiredFields() []string {
	var names []string
	for _, f := range m.fields {
		if f.required {
			names = append(names, f.name)
		}
	}
	return names
}

func lookup(fs FieldSet, name string) (string, bool) {
	if v, ok := fs[name]; ok {
		return v, true
	}
	for k, v := range fs {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

func setValue(fieldVal string, addr reflect.Value, tp reflect.Type, tag reflect.StructTag) error {
	if tp == timeType {
		tm, err := parseDate(fieldVal, tag.Get("format"))
		if err != nil {
			return err
		}
		addr.Elem().Set(reflect.ValueOf(tm))
		return nil
	}
	if addr.Type().Implements(textUnmarshalType) {
		return addr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(fieldVal))
	}
	switch tp.Kind() {
	case reflect.String:
		addr.Elem().SetString(fieldVal)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(fieldVal, 10, tp.Bits())
		if err != nil {
			return err
		}
		addr.Elem().SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(fieldVal, 10, tp.Bits())
		if err != nil {
			return err
		}
		addr.Elem().SetUint(v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(fieldVal, tp.Bits())
		if err != nil {
			return err
		}
		addr.Elem().SetFloat(v)
	case reflect.Bool:
		v, err := strconv.ParseBool(fieldVal)
		if err != nil {
			switch fieldVal {
			case "Y", "y", "Yes", "YES":
				v = true
			case "N", "n", "No", "NO":
				v = false
			default:
				return err
			}
		}
		addr.Elem().SetBool(v)
	case reflect.Ptr:
		te := tp.Elem()
		v := reflect.New(te)
		if err := setValue(fieldVal, v, te, tag); err != nil {
			return err
		}
		addr.Elem().Set(v)
	default:
		return errors.Errorf("unsupported field type:%v", tp)
	}
	return nil
}

func parseDate(fieldVal string, format string) (time.Time, error) {
	if format != "" {
		return time.ParseInLocation(format, fieldVal, time.Local)
	}
	switch len(fieldVal) {
	case 8:
		return time.ParseInLocation("20060102", fieldVal, time.Local)
	case 10:
		return time.ParseInLocation("2006-01-02", fieldVal, time.Local)
	case 19:
		return time.ParseInLocation("2006-01-02 15:04:05", fieldVal, time.Local)
	}
	return time.Time{}, errors.Errorf("unrecognized date format:%v", fieldVal)
}
