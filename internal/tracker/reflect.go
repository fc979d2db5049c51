package tracker

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

const auditTag = "audit"

// ReflectProvider derives audit metadata from struct tags. A field tagged
// `audit:"name"` is tracked under that name; the option `identity` marks the
// field holding the record's stable identity (which itself is not diffed).
//
//	type Account struct {
//		ID    string `audit:"id,identity"`
//		Email string `audit:"email"`
//	}
//
// Audited fields must be scalars, time.Time, or pointers to either; slices,
// maps and nested structs are rejected when the type is first introspected.
type ReflectProvider struct{}

func (ReflectProvider) TypeOf(record interface{}) string {
	t := reflect.TypeOf(record)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}

func (ReflectProvider) IdentityOf(record interface{}) string {
	v := reflect.ValueOf(record)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return ""
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		_, identity := parseAuditTag(t.Field(i).Tag.Get(auditTag))
		if !identity {
			continue
		}
		fv := v.Field(i)
		if fv.Kind() != reflect.String {
			return ""
		}
		return fv.String()
	}
	return ""
}

func (ReflectProvider) FieldsOf(record interface{}) ([]Field, error) {
	t := reflect.TypeOf(record)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("record type %s is not a struct", t)
	}

	var fields []Field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue // unexported
		}

		name, identity := parseAuditTag(sf.Tag.Get(auditTag))
		if identity {
			if sf.Type.Kind() != reflect.String {
				return nil, fmt.Errorf("identity field %s.%s must be a string, got %s", t, sf.Name, sf.Type)
			}
			continue
		}
		if name == "" {
			continue
		}

		if !auditableType(sf.Type) {
			return nil, fmt.Errorf("audited field %s.%s has unsupported type %s", t, sf.Name, sf.Type)
		}

		fields = append(fields, Field{
			Name: name,
			Read: readerFor(sf.Index),
		})
	}

	return fields, nil
}

// readerFor builds an accessor over the struct field at index. Pointer fields
// are dereferenced so the captured value is compared structurally; a nil
// pointer is captured as nil.
func readerFor(index []int) func(record interface{}) interface{} {
	return func(record interface{}) interface{} {
		v := reflect.ValueOf(record)
		if v.Kind() == reflect.Pointer {
			v = v.Elem()
		}
		fv := v.FieldByIndex(index)
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				return nil
			}
			fv = fv.Elem()
		}
		return fv.Interface()
	}
}

var timeType = reflect.TypeOf(time.Time{})

func auditableType(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// parseAuditTag splits an audit tag into the reported field name and its
// options. Untagged fields and "-" yield an empty name.
func parseAuditTag(tag string) (name string, identity bool) {
	if tag == "" || tag == "-" {
		return "", false
	}
	parts := strings.Split(tag, ",")
	name = strings.TrimSpace(parts[0])
	for _, opt := range parts[1:] {
		if strings.TrimSpace(opt) == "identity" {
			identity = true
		}
	}
	if name == "-" {
		name = ""
	}
	return name, identity
}
