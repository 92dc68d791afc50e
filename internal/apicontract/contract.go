// Package apicontract checks a generated swagger document against the
// routes the Vistagram frontend depends on, and against a previous revision
// of the same document.
package apicontract

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Route is one method and path pair, with the response codes clients handle.
type Route struct {
	Method    string
	Path      string
	Responses []string
}

// Required lists the endpoints the web client calls. Paths are relative to
// the /api base path, in swagger template syntax.
var Required = []Route{
	{"post", "/auth/register", []string{"201", "400"}},
	{"post", "/auth/login", []string{"200", "401"}},
	{"get", "/auth/me", []string{"200", "401"}},
	{"post", "/auth/logout", []string{"200"}},
	{"get", "/posts/feed", []string{"200", "401"}},
	{"get", "/posts", []string{"200"}},
	{"post", "/posts", []string{"201", "400"}},
	{"get", "/posts/{id}", []string{"200", "404"}},
	{"post", "/posts/{id}/like", []string{"200", "404"}},
	{"post", "/posts/{id}/share", []string{"200", "404"}},
	{"post", "/posts/{id}/comment", []string{"201", "400", "404"}},
	{"delete", "/posts/{id}", []string{"200", "403", "404"}},
	{"get", "/users", []string{"200"}},
	{"put", "/users/me", []string{"200", "400"}},
	{"get", "/users/{id}", []string{"200", "400", "404"}},
	{"get", "/users/{id}/posts", []string{"200", "400"}},
	{"get", "/users/{id}/followers", []string{"200", "400", "404"}},
	{"get", "/users/{id}/following", []string{"200", "400", "404"}},
	{"post", "/users/{id}/follow", []string{"200", "400", "404"}},
}

var methods = map[string]struct{}{
	"get": {}, "put": {}, "post": {}, "delete": {}, "patch": {}, "head": {}, "options": {},
}

// Document is the subset of a swagger file the checks look at:
// path -> method -> set of response codes.
type Document struct {
	Paths map[string]map[string]map[string]struct{}
}

// Load reads a swagger.json or swagger.yaml file.
func Load(path string) (*Document, error) {
	// #nosec G304: path comes from CLI flags in a dev tool
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes a swagger document. JSON input is accepted since it is valid YAML.
func Parse(raw []byte) (*Document, error) {
	var doc struct {
		Paths map[string]map[string]yaml.Node `yaml:"paths"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.Paths == nil {
		return nil, errors.New("missing top-level paths field")
	}

	out := &Document{Paths: make(map[string]map[string]map[string]struct{}, len(doc.Paths))}
	for path, entries := range doc.Paths {
		for method, node := range entries {
			method = strings.ToLower(strings.TrimSpace(method))
			if _, ok := methods[method]; !ok {
				continue
			}
			var op struct {
				Responses map[string]yaml.Node `yaml:"responses"`
			}
			if err := node.Decode(&op); err != nil {
				return nil, fmt.Errorf("%s %s: %w", strings.ToUpper(method), path, err)
			}
			codes := make(map[string]struct{}, len(op.Responses))
			for code := range op.Responses {
				codes[strings.ToLower(strings.TrimSpace(code))] = struct{}{}
			}
			if out.Paths[path] == nil {
				out.Paths[path] = map[string]map[string]struct{}{}
			}
			out.Paths[path][method] = codes
		}
	}
	return out, nil
}

// CheckRequired reports every required route or response code the document lacks.
func CheckRequired(doc *Document, required []Route) []string {
	var issues []string
	for _, r := range required {
		codes, ok := doc.Paths[r.Path][r.Method]
		if !ok {
			issues = append(issues, fmt.Sprintf("missing operation: %s %s", strings.ToUpper(r.Method), r.Path))
			continue
		}
		for _, code := range r.Responses {
			if _, ok := codes[code]; !ok {
				issues = append(issues, fmt.Sprintf("missing response code: %s %s -> %s", strings.ToUpper(r.Method), r.Path, code))
			}
		}
	}
	sort.Strings(issues)
	return issues
}

// Compare reports paths, operations and response codes present in base but
// dropped from revision.
func Compare(base, revision *Document) []string {
	var issues []string
	for path, baseOps := range base.Paths {
		revOps, ok := revision.Paths[path]
		if !ok {
			issues = append(issues, fmt.Sprintf("removed path: %s", path))
			continue
		}
		for method, baseCodes := range baseOps {
			revCodes, ok := revOps[method]
			if !ok {
				issues = append(issues, fmt.Sprintf("removed operation: %s %s", strings.ToUpper(method), path))
				continue
			}
			for code := range baseCodes {
				if _, ok := revCodes[code]; !ok {
					issues = append(issues, fmt.Sprintf("removed response code: %s %s -> %s", strings.ToUpper(method), path, strings.ToUpper(code)))
				}
			}
		}
	}
	sort.Strings(issues)
	return issues
}
