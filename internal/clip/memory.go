package clip

import "sync"

// Memory is an in-process clipboard. The zero value is an empty clipboard.
// Like a real clipboard, writing one format clears the other.
type Memory struct {
	mu    sync.Mutex
	text  string
	image []byte
	err   error
}

func (m *Memory) Name() string { return "memory" }

// Fail makes every subsequent read return err until cleared with Fail(nil).
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *Memory) ReadText() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if m.text == "" {
		return "", ErrEmpty
	}
	return m.text, nil
}

func (m *Memory) ReadImage() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if len(m.image) == 0 {
		return nil, ErrEmpty
	}
	return append([]byte(nil), m.image...), nil
}

func (m *Memory) WriteText(text string) error {
	m.mu.Lock()
	m.text, m.image = text, nil
	m.mu.Unlock()
	return nil
}

func (m *Memory) WriteImage(png []byte) error {
	m.mu.Lock()
	m.text, m.image = "", append([]byte(nil), png...)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() {}
