package clip

import (
	"fmt"

	atotto "github.com/atotto/clipboard"
)

// fallbackBackend shells out to the platform clipboard tools. It only
// handles text.
type fallbackBackend struct{}

func (*fallbackBackend) Name() string { return "atotto/clipboard (text only)" }

func (*fallbackBackend) ReadText() (string, error) {
	s, err := atotto.ReadAll()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if s == "" {
		return "", ErrEmpty
	}
	return s, nil
}

func (*fallbackBackend) ReadImage() ([]byte, error) { return nil, ErrUnsupported }

func (*fallbackBackend) WriteText(text string) error {
	if err := atotto.WriteAll(text); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (*fallbackBackend) WriteImage(_ []byte) error { return ErrUnsupported }

func (*fallbackBackend) Close() {}
