package api

import "errors"

var (
	ErrPathOutsideRoot = errors.New("path escapes mount root")
	ErrInvalidPath     = errors.New("path is not under mount")
	ErrNotFound        = errors.New("path not found")
	ErrAlreadyExists   = errors.New("destination already exists")
	ErrIsADirectory    = errors.New("target is a directory")
	ErrNotADirectory   = errors.New("target is not a directory")
	ErrReadOnly        = errors.New("backend is read-only")
	ErrInvalidArgument = errors.New("invalid argument")

	ErrExecuteUnsupported = errors.New("backend does not support execute")
)
