// Package loader parses the textual (YAML, object-graph) statechart
// description into internal/model, normalising target references and
// validating structure (§4.2). It is the only package in this module that
// depends on gopkg.in/yaml.v3 for the wire format itself — mirroring the
// teacher's single external dependency.
package loader

import "fmt"

// LoadError is the boundary error type named in §6 "Errors surfaced at the
// boundary". Kind classifies the failure ("parse", "validate", "target"),
// Path is the node path (when known), Detail is a human-readable message.
type LoadError struct {
	Kind   string
	Path   string
	Detail string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("loader: %s at %q: %s", e.Kind, e.Path, e.Detail)
	}
	return fmt.Sprintf("loader: %s: %s", e.Kind, e.Detail)
}

func (e *LoadError) Unwrap() error { return e.Err }

func parseErr(detail string, err error) *LoadError {
	return &LoadError{Kind: "parse", Detail: detail, Err: err}
}

func targetErr(path, detail string) *LoadError {
	return &LoadError{Kind: "target", Path: path, Detail: detail}
}

func validateErr(path string, err error) *LoadError {
	return &LoadError{Kind: "validate", Path: path, Detail: err.Error(), Err: err}
}
