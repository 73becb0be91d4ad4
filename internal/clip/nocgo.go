//go:build js || (!windows && !cgo)

package clip

import "errors"

// golang.design/x/clipboard panics at init without cgo on these platforms,
// so it is not linked at all.
func newNative() (Backend, error) {
	return nil, errors.New("built without cgo")
}
