package system

// Future is the awaitable result of a cooperative task. It is not safe for
// concurrent use: resolve and observe it from the scheduler's goroutine.
type Future[T any] struct {
	done      bool
	val       T
	err       error
	callbacks []func(T, error)
}

func NewFuture[T any]() *Future[T] {
	return &Future[T]{}
}

// Resolved returns an already completed future.
func Resolved[T any](v T, err error) *Future[T] {
	f := &Future[T]{}
	f.Resolve(v, err)
	return f
}

// Resolve completes the future. Only the first call has an effect; it
// reports whether this call won.
func (f *Future[T]) Resolve(v T, err error) bool {
	if f.done {
		return false
	}
	f.done = true
	f.val = v
	f.err = err
	cbs := f.callbacks
	f.callbacks = nil
	for _, cb := range cbs {
		cb(v, err)
	}
	return true
}

func (f *Future[T]) Done() bool { return f.done }

// Result returns the value and error. Before Done it returns the zero value
// and a nil error.
func (f *Future[T]) Result() (T, error) {
	return f.val, f.err
}

// Then runs fn once the future resolves, immediately if it already has.
func (f *Future[T]) Then(fn func(T, error)) {
	if fn == nil {
		return
	}
	if f.done {
		fn(f.val, f.err)
		return
	}
	f.callbacks = append(f.callbacks, fn)
}
