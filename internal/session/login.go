package session

import (
	"sync"
)

// LoginState describes the lifecycle of a background login attempt.
type LoginState int

const (
	// LoginNotStarted means no login attempt is pending.
	LoginNotStarted LoginState = iota
	// LoginInProgress means the browser login is still running (typically
	// waiting for 2FA approval on the user's device).
	LoginInProgress
	// LoginDone means the attempt finished; Result carries the outcome.
	LoginDone
)

// LoginResult is the outcome of a finished login attempt.
type LoginResult struct {
	// Cookies is the decrypted name=value cookie string on success.
	Cookies string
	// Err is the failure, if any.
	Err error
}

// LoginTask is a handle for a long-running external login flow.
//
// The two-phase 2FA flow needs a non-blocking status check: the first tool
// call starts the task and returns immediately, a later call polls it. The
// core's only contract with the login collaborator is "accept a cookie
// string when done" — the browser automation itself lives outside this
// module.
type LoginTask struct {
	mu     sync.Mutex
	state  LoginState
	result LoginResult
}

// NewLoginTask returns an idle task handle.
func NewLoginTask() *LoginTask {
	return &LoginTask{}
}

// Start launches fn in the background. It returns false if an attempt is
// already in progress.
func (t *LoginTask) Start(fn func() (string, error)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == LoginInProgress {
		return false
	}
	t.state = LoginInProgress
	t.result = LoginResult{}

	go func() {
		cookies, err := fn()
		t.mu.Lock()
		t.state = LoginDone
		t.result = LoginResult{Cookies: cookies, Err: err}
		t.mu.Unlock()
	}()
	return true
}

// Status returns the current state without blocking. When the state is
// LoginDone the result is returned and the task resets to LoginNotStarted,
// so each finished attempt is harvested exactly once.
func (t *LoginTask) Status() (LoginState, LoginResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.state
	result := t.result
	if state == LoginDone {
		t.state = LoginNotStarted
		t.result = LoginResult{}
	}
	return state, result
}
