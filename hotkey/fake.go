package hotkey

// Fake is a Hotkey driven by Press/Release, used in tests and -test mode.
type Fake struct {
	keydown chan struct{}
	keyup   chan struct{}
}

func NewFake() *Fake {
	return &Fake{
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (f *Fake) Register() error          { return nil }
func (f *Fake) Unregister()              {}
func (f *Fake) Keydown() <-chan struct{} { return f.keydown }
func (f *Fake) Keyup() <-chan struct{}   { return f.keyup }

func (f *Fake) Press()   { f.keydown <- struct{}{} }
func (f *Fake) Release() { f.keyup <- struct{}{} }
