package airbnb

import "github.com/tidwall/gjson"

// walk visits every object under r depth-first in document order, parents
// before children. Arrays are traversed but not visited themselves.
func walk(r gjson.Result, visit func(obj gjson.Result)) {
	switch {
	case r.IsObject():
		visit(r)
		r.ForEach(func(_, v gjson.Result) bool {
			walk(v, visit)
			return true
		})
	case r.IsArray():
		r.ForEach(func(_, v gjson.Result) bool {
			walk(v, visit)
			return true
		})
	}
}
