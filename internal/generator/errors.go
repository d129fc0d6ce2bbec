package generator

import (
	"errors"
	"fmt"
)

// FileAccessError reports a configured file that is missing, unreadable,
// or not text.
type FileAccessError struct {
	Path string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error { return e.Err }

// RemoteCallError wraps whatever the chat-completions call returned.
type RemoteCallError struct {
	Err error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("remote call: %v", e.Err)
}

func (e *RemoteCallError) Unwrap() error { return e.Err }

// ResponseDecodeError reports model output that is not valid JSON.
type ResponseDecodeError struct {
	Content string
	Err     error
}

func (e *ResponseDecodeError) Error() string {
	return fmt.Sprintf("decode model response: %v", e.Err)
}

func (e *ResponseDecodeError) Unwrap() error { return e.Err }

// Error kinds reported by Kind.
const (
	KindFileAccess     = "file_access"
	KindRemoteCall     = "remote_call"
	KindResponseDecode = "response_decode"
	KindOther          = "other"
)

// Kind classifies err by the generator error type in its chain.
func Kind(err error) string {
	var (
		fileErr   *FileAccessError
		remoteErr *RemoteCallError
		decodeErr *ResponseDecodeError
	)
	switch {
	case errors.As(err, &fileErr):
		return KindFileAccess
	case errors.As(err, &remoteErr):
		return KindRemoteCall
	case errors.As(err, &decodeErr):
		return KindResponseDecode
	default:
		return KindOther
	}
}
