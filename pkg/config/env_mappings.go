package config

import (
	"reflect"
	"slices"
	"strings"
	"sync"
)

// EnvBinding ties one environment variable to the config path it overrides.
type EnvBinding struct {
	Var       string
	Path      string
	Sensitive bool
}

var sensitiveStringType = reflect.TypeOf(SensitiveString(""))

// leafFields indexes every koanf leaf of Config by dotted path.
var leafFields = sync.OnceValue(func() map[string]reflect.StructField {
	out := make(map[string]reflect.StructField)
	collectLeaves(reflect.TypeOf(Config{}), "", out)
	return out
})

var envBindings = sync.OnceValue(func() []EnvBinding {
	var out []EnvBinding
	for path, field := range leafFields() {
		name := field.Tag.Get("env")
		if name == "" || name == "-" {
			continue
		}
		out = append(out, EnvBinding{Var: name, Path: path, Sensitive: isSensitiveField(field)})
	}
	slices.SortFunc(out, func(a, b EnvBinding) int { return strings.Compare(a.Var, b.Var) })
	return out
})

var envPaths = sync.OnceValue(func() map[string]string {
	bindings := envBindings()
	out := make(map[string]string, len(bindings))
	for _, b := range bindings {
		out[b.Var] = b.Path
	}
	return out
})

func collectLeaves(t reflect.Type, prefix string, out map[string]reflect.StructField) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("koanf")
		if !field.IsExported() || tag == "" || tag == "-" {
			continue
		}
		path := tag
		if prefix != "" {
			path = prefix + "." + tag
		}
		if field.Type.Kind() == reflect.Struct && field.Type.PkgPath() != "time" {
			collectLeaves(field.Type, path, out)
			continue
		}
		out[path] = field
	}
}

func isSensitiveField(field reflect.StructField) bool {
	return field.Type == sensitiveStringType || field.Tag.Get("sensitive") == "true"
}

// EnvBindings lists every environment override sorted by variable name.
func EnvBindings() []EnvBinding {
	return slices.Clone(envBindings())
}

// LookupEnvPath returns the config path set by the environment variable name.
func LookupEnvPath(name string) (string, bool) {
	path, ok := envPaths()[name]
	return path, ok
}

// EnvVarFor returns the environment variable that overrides path, or "".
func EnvVarFor(path string) string {
	field, ok := leafFields()[path]
	if !ok {
		return ""
	}
	if name := field.Tag.Get("env"); name != "-" {
		return name
	}
	return ""
}

// IsSensitivePath reports whether the value at path is a secret that must be
// redacted wherever configuration is displayed.
func IsSensitivePath(path string) bool {
	field, ok := leafFields()[path]
	return ok && isSensitiveField(field)
}
