// Package tmplx renders short text/template snippets used for status lines
// and command output.
package tmplx

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
)

var (
	ErrRenderTemplate = errors.New("tmplx: render error")
	ErrParseTemplate  = errors.New("tmplx: parse error")
)

type Template struct {
	tmpl *template.Template
}

type Options struct {
	sample any
	check  CheckFunc
	funcs  template.FuncMap
}

type Option func(*Options) error

// CheckFunc inspects the output of a template rendered against sample data.
type CheckFunc func(out string) error

func defaultFuncs() template.FuncMap {
	return template.FuncMap{
		"default":  defaultFunc,
		"json":     jsonFunc,
		"jsonGet":  jsonGet,
		"truncate": truncate,
		"join":     join,
		"upper":    strings.ToUpper,
	}
}

func WithFunc(name string, fn any) Option {
	return func(o *Options) error {
		if fn == nil {
			return fmt.Errorf("func %q is nil", name)
		}
		o.funcs[name] = fn
		return nil
	}
}

// WithSample renders the template once against sample at parse time and
// passes the output to check.
func WithSample(sample any, check CheckFunc) Option {
	return func(o *Options) error {
		o.sample = sample
		o.check = check
		return nil
	}
}

// NotEmpty is a CheckFunc rejecting blank output.
func NotEmpty(out string) error {
	if strings.TrimSpace(out) == "" {
		return errors.New("template renders empty text")
	}
	return nil
}

func MustParse(name, text string, opts ...Option) *Template {
	t, err := Parse(name, text, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

func Parse(name, text string, args ...Option) (*Template, error) {
	opts := &Options{funcs: defaultFuncs()}
	for _, arg := range args {
		if err := arg(opts); err != nil {
			return nil, err
		}
	}

	tmpl, err := template.New(name).
		Option("missingkey=zero").
		Funcs(opts.funcs).
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseTemplate, err)
	}

	t := &Template{tmpl: tmpl}
	if opts.check != nil {
		out, err := t.Render(opts.sample)
		if err != nil {
			return nil, err
		}
		if err := opts.check(out); err != nil {
			return nil, fmt.Errorf("check template %s: %w", name, err)
		}
	}
	return t, nil
}

func (t *Template) Render(data any) (string, error) {
	buf := new(bytes.Buffer)
	if err := t.tmpl.Execute(buf, data); err != nil {
		return "", fmt.Errorf("%w: %w", ErrRenderTemplate, err)
	}
	return buf.String(), nil
}

// MustRender is Render for templates whose data shape is fixed by the caller.
// Errors are rendered inline instead of panicking.
func (t *Template) MustRender(data any) string {
	out, err := t.Render(data)
	if err != nil {
		return err.Error()
	}
	return out
}

func defaultFunc(def any, value any) any {
	if value == nil || cast.ToString(value) == "" {
		return def
	}
	return value
}

func jsonFunc(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// jsonGet reads path from value, which is either raw JSON text or anything
// that marshals to JSON.
func jsonGet(path string, value any) (string, error) {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		raw = string(data)
	}
	return gjson.Get(raw, path).String(), nil
}

func truncate(n any, value any) string {
	s := cast.ToString(value)
	limit := cast.ToInt(n)
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}

func join(sep string, values any) string {
	return strings.Join(cast.ToStringSlice(values), sep)
}
