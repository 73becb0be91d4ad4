//go:build !js && (windows || cgo)

package clip

import (
	"unicode/utf8"

	"golang.design/x/clipboard"
)

type nativeBackend struct{}

func newNative() (Backend, error) {
	if err := clipboard.Init(); err != nil {
		return nil, err
	}
	return nativeBackend{}, nil
}

func (nativeBackend) Name() string { return "golang.design/x/clipboard" }

func (nativeBackend) ReadText() (string, error) {
	b := clipboard.Read(clipboard.FmtText)
	if len(b) == 0 {
		return "", ErrEmpty
	}
	// basic sanity check: some platforms hand back non-UTF-8 garbage for
	// formats they could not convert
	if !utf8.Valid(b) {
		return "", ErrUnsupported
	}
	return string(b), nil
}

func (nativeBackend) ReadImage() ([]byte, error) {
	b := clipboard.Read(clipboard.FmtImage)
	if len(b) == 0 {
		return nil, ErrEmpty
	}
	return b, nil
}

func (nativeBackend) WriteText(text string) error {
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

func (nativeBackend) WriteImage(png []byte) error {
	clipboard.Write(clipboard.FmtImage, png)
	return nil
}

func (nativeBackend) Close() {}
