package remote

import "errors"

var (
	errDial         = errors.New("dial backend server")
	errWriteRequest = errors.New("write request")
	errReadResponse = errors.New("read response")
)
