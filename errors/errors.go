package errors

import "fmt"

var (
	ErrWorkerPanic           = fmt.Errorf("worker panic")
	ErrAuthenticationMissing = fmt.Errorf("no verified identity bound to the request")
	ErrInvalidPeer           = fmt.Errorf("malformed peer identifier")
	ErrEmptyMessage          = fmt.Errorf("message has neither text nor attachment")
	ErrNotFound              = fmt.Errorf("not found")
	ErrStorageFailure        = fmt.Errorf("storage failure")
	ErrUserAlreadyExists     = fmt.Errorf("user already exists")
	ErrInvalidCredentials    = fmt.Errorf("invalid credentials")
	ErrInvalidPassword       = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration       = fmt.Errorf("token generation failed")
	ErrUnsupportedAttachment = fmt.Errorf("unsupported attachment type")
)
