package centralsync

import "errors"

var (
	// ErrUnauthenticated means no session token is present; checked before
	// any network attempt.
	ErrUnauthenticated = errors.New("no session token")
	// ErrSessionExpired means the central system rejected the token (401).
	ErrSessionExpired = errors.New("session expired")
	// ErrNetwork wraps transport-level failures.
	ErrNetwork = errors.New("network error")
	// ErrRemoteRejected wraps business-level rejections from the central
	// system; the remote message is attached.
	ErrRemoteRejected = errors.New("remote rejected request")
)
