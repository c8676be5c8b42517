package models

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrWriteFailed         = errors.New("write failed")
	ErrUploadFailed        = errors.New("upload failed")
	ErrURLResolutionFailed = errors.New("download url resolution failed")
	ErrDecodeFailed        = errors.New("decode failed")

	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidInput       = errors.New("invalid input")
)
