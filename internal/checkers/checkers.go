// Package checkers provides quicktest checkers shared across test suites.
package checkers

import (
	"encoding/json"
	"fmt"

	qt "github.com/frankban/quicktest"
	"github.com/yalp/jsonpath"
)

// JSONPathEquals returns a checker asserting that evaluating path against the
// JSON document under test yields the expected value. The document may be a
// string, []byte, or an already-decoded value.
//
//	c.Assert(body, checkers.JSONPathEquals("$.entries[0].id"), "r42")
func JSONPathEquals(path string) qt.Checker {
	return &jsonPathChecker{path: path}
}

type jsonPathChecker struct {
	path string
}

// ArgNames implements qt.Checker.
func (c *jsonPathChecker) ArgNames() []string {
	return []string{"got document", "want value"}
}

// Check implements qt.Checker.
func (c *jsonPathChecker) Check(got any, args []any, note func(key string, value any)) error {
	doc, err := decodeDocument(got)
	if err != nil {
		return fmt.Errorf("cannot decode document: %v", err)
	}

	val, err := jsonpath.Read(doc, c.path)
	if err != nil {
		note("path", c.path)
		return fmt.Errorf("jsonpath lookup failed: %v", err)
	}

	want := args[0]
	if val != want {
		note("path", c.path)
		note("value at path", val)
		return fmt.Errorf("value at %s does not equal expected value", c.path)
	}
	return nil
}

// decodeDocument normalises the value under test to a decoded JSON structure.
func decodeDocument(got any) (any, error) {
	switch v := got.(type) {
	case string:
		var doc any
		if err := json.Unmarshal([]byte(v), &doc); err != nil {
			return nil, err
		}
		return doc, nil
	case []byte:
		var doc any
		if err := json.Unmarshal(v, &doc); err != nil {
			return nil, err
		}
		return doc, nil
	default:
		return got, nil
	}
}
