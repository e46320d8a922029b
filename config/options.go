// Package config holds the functional options that configure a
// schema.Registry, following the teacher's "With..." builder-method
// naming (desc/builder/builders.go) translated into the now-idiomatic
// functional-options form.
package config

import "time"

// DateTimeKind selects how the legacy scaled-ticks well-known adapter
// tags its kind field (spec.md §4.I).
type DateTimeKind int8

const (
	DateTimeUnspecified DateTimeKind = iota
	DateTimeUTC
	DateTimeLocal
)

// Options is the resolved configuration a Registry is built with.
type Options struct {
	InternStrings         bool
	DateTimeKind          DateTimeKind
	AutoAddMissingTypes   bool
	ImplicitZeroDefaults  bool
	ParseableTypeFallback bool
	MetadataTimeout       time.Duration
}

// Option mutates an in-progress Options during Apply.
type Option func(*Options)

// WithInternStrings requests that equal strings decoded during one
// deserialization call share a single backing allocation.
func WithInternStrings() Option {
	return func(o *Options) { o.InternStrings = true }
}

// WithDateTimeKind records k in Options.DateTimeKind; default is
// DateTimeUnspecified. No package reads this field:
// wellknown.WriteScaledTicks writes ScaledTicks.Kind, gated by its own
// includeKind argument.
func WithDateTimeKind(k DateTimeKind) Option {
	return func(o *Options) { o.DateTimeKind = k }
}

// WithAutoAddMissingTypes lets plan.Builder synthesize an entry for an
// unregistered struct type on first use instead of failing lookup. The
// synthesized entry lives only in that Builder's plan cache; it is not
// added to the registry.
func WithAutoAddMissingTypes() Option {
	return func(o *Options) { o.AutoAddMissingTypes = true }
}

// WithImplicitZeroDefaults treats an unset FieldDescriptor.Default as
// the Go zero value for the field's type, rather than "no default"
// (which would make every write of the zero value significant).
func WithImplicitZeroDefaults() Option {
	return func(o *Options) { o.ImplicitZeroDefaults = true }
}

// WithParseableTypeFallback sets Options.ParseableTypeFallback. No
// package reads this field; no string-to-scalar conversion path
// exists.
func WithParseableTypeFallback() Option {
	return func(o *Options) { o.ParseableTypeFallback = true }
}

// WithMetadataTimeout bounds how long a writer waits to acquire the
// registry's single-writer lock (spec.md §3 "Lifecycle"); default 5s.
func WithMetadataTimeout(d time.Duration) Option {
	return func(o *Options) { o.MetadataTimeout = d }
}

// Apply folds opts onto a default Options value.
func Apply(opts ...Option) Options {
	o := Options{MetadataTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
