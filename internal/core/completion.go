package core

import "fmt"

// Completion signals the end of an asynchronous initialization. It delivers
// one value (nil on success) and is closed afterwards. A nil Completion means
// the initializer already finished.
type Completion <-chan error

// Done returns an already successful Completion.
func Done() Completion {
	ch := make(chan error, 1)
	ch <- nil
	close(ch)
	return ch
}

// Fail returns an already failed Completion.
func Fail(err error) Completion {
	ch := make(chan error, 1)
	ch <- err
	close(ch)
	return ch
}

// Go runs fn on a new goroutine and returns a Completion that delivers its
// result. A panic in fn is delivered as an error.
func Go(fn func() error) Completion {
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		defer func() {
			if r := recover(); r != nil {
				ch <- fmt.Errorf("panic: %v", r)
			}
		}()
		ch <- fn()
	}()
	return ch
}
