package router

import (
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/rickgao/inkwell/internal/search"
	"github.com/rickgao/inkwell/internal/transport"
	"github.com/rickgao/inkwell/internal/workspace"
)

// mockController is a testify mock of Controller.
type mockController struct {
	mock.Mock
}

func (m *mockController) Paths() []workspace.Node {
	args := m.Called()
	return args.Get(0).([]workspace.Node)
}

func (m *mockController) FindFile(h workspace.Hash) (*workspace.File, error) {
	args := m.Called(h)
	f, _ := args.Get(0).(*workspace.File)
	return f, args.Error(1)
}

func (m *mockController) FileWithContent(h workspace.Hash) (workspace.FileView, error) {
	args := m.Called(h)
	return args.Get(0).(workspace.FileView), args.Error(1)
}

func (m *mockController) OpenFile(h workspace.Hash) error { return m.Called(h).Error(0) }
func (m *mockController) SelectDir(h workspace.Hash) error { return m.Called(h).Error(0) }
func (m *mockController) NewFile(req NewFileRequest) error { return m.Called(req).Error(0) }
func (m *mockController) NewDir(req NewDirRequest) error { return m.Called(req).Error(0) }
func (m *mockController) SaveFile(req SaveRequest) error { return m.Called(req).Error(0) }
func (m *mockController) AutosaveFile(req SaveRequest) error {
	return m.Called(req).Error(0)
}
func (m *mockController) OpenDir(req OpenDirRequest) error { return m.Called(req).Error(0) }
func (m *mockController) RevertFile() error { return m.Called().Error(0) }
func (m *mockController) CloseFile() error { return m.Called().Error(0) }
func (m *mockController) RemoveFile(h workspace.Hash) error { return m.Called(h).Error(0) }
func (m *mockController) RemoveDir(h workspace.Hash) error { return m.Called(h).Error(0) }
func (m *mockController) Export(req ExportRequest) error { return m.Called(req).Error(0) }
func (m *mockController) RenameFile(req RenameRequest) error { return m.Called(req).Error(0) }
func (m *mockController) RenameDir(req RenameRequest) error { return m.Called(req).Error(0) }
func (m *mockController) Move(req MoveRequest) error { return m.Called(req).Error(0) }

func (m *mockController) CurrentFile() (workspace.Hash, bool) {
	args := m.Called()
	return args.Get(0).(workspace.Hash), args.Bool(1)
}

func (m *mockController) CurrentDir() (workspace.Hash, bool) {
	args := m.Called()
	return args.Get(0).(workspace.Hash), args.Bool(1)
}

func (m *mockController) SearchFile(h workspace.Hash, terms []search.Term) (search.Result, error) {
	args := m.Called(h, terms)
	return args.Get(0).(search.Result), args.Error(1)
}

func (m *mockController) RetrieveDictionaryFile(kind, lang string) error {
	return m.Called(kind, lang).Error(0)
}

// fakeTransport records emitted messages.
type fakeTransport struct {
	mu        sync.Mutex
	listeners map[string]transport.ListenerFunc
	sent      []Message
	noWindow  bool
	onEmit    func(Message)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{listeners: make(map[string]transport.ListenerFunc)}
}

func (f *fakeTransport) Listen(channel string, fn transport.ListenerFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.listeners[channel]; ok {
		return transport.ErrChannelTaken
	}
	f.listeners[channel] = fn
	return nil
}

func (f *fakeTransport) Emit(channel string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noWindow {
		return transport.ErrNoWindow
	}
	msg := payload.(Message)
	if f.onEmit != nil {
		f.onEmit(msg)
	}
	f.sent = append(f.sent, msg)
	return nil
}

// deliver simulates a frame arriving from the UI.
func (f *fakeTransport) deliver(channel string, payload []byte) {
	f.mu.Lock()
	fn := f.listeners[channel]
	f.mu.Unlock()
	if fn != nil {
		fn(payload)
	}
}

func (f *fakeTransport) messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.sent...)
}
