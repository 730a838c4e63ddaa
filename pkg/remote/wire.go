// Package remote exposes a wired backend over a byte stream so a
// supervising process in another address space can consume the storage
// layer's contract. Messages are 4-byte big-endian length frames carrying a
// CBOR body.
package remote

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/jingkaihe/padlock/internal/errx"
	"github.com/jingkaihe/padlock/pkg/api"
)

type OpCode uint8

const (
	OpPing OpCode = iota
	OpRead
	OpWrite
	OpList
	OpDelete
	OpMove
	OpExecute
)

// MaxFrameBytes bounds a single message so a broken peer cannot make the
// receiver allocate unbounded memory.
const MaxFrameBytes = 64 << 20

type Request struct {
	Op      OpCode `cbor:"op"`
	Path    string `cbor:"path,omitempty"`
	NewPath string `cbor:"new_path,omitempty"`
	Content []byte `cbor:"content,omitempty"`
	Command string `cbor:"command,omitempty"`
}

type Response struct {
	ErrCode string               `cbor:"err_code,omitempty"`
	ErrMsg  string               `cbor:"err_msg,omitempty"`
	Record  *api.FileRecord      `cbor:"record,omitempty"`
	Entries []api.Entry          `cbor:"entries,omitempty"`
	Exec    *api.ExecuteResponse `cbor:"exec,omitempty"`
}

var errFrameTooLarge = errors.New("frame exceeds size limit")

func writeFrame(w io.Writer, v any) error {
	body, err := cbor.Marshal(v)
	if err != nil {
		return err
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

func readFrame(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > MaxFrameBytes {
		return errFrameTooLarge
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return err
	}
	return cbor.Unmarshal(body, v)
}

// Error kinds cross the wire as string codes and are rehydrated to the
// matching sentinel on the client so errors.Is keeps working end to end.
var wireCodes = map[string]error{
	"path_outside_root":   api.ErrPathOutsideRoot,
	"invalid_path":        api.ErrInvalidPath,
	"not_found":           api.ErrNotFound,
	"already_exists":      api.ErrAlreadyExists,
	"is_a_directory":      api.ErrIsADirectory,
	"not_a_directory":     api.ErrNotADirectory,
	"read_only":           api.ErrReadOnly,
	"invalid_argument":    api.ErrInvalidArgument,
	"execute_unsupported": api.ErrExecuteUnsupported,
}

func codeForError(err error) string {
	for code, sentinel := range wireCodes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return "internal"
}

func errorFromWire(code, msg string) error {
	sentinel, ok := wireCodes[code]
	if !ok {
		return errors.New(msg)
	}
	if detail, found := cutPrefixAndSep(msg, sentinel.Error()); found && detail != "" {
		return errx.With(sentinel, ": %s", detail)
	}
	return sentinel
}

func cutPrefixAndSep(msg, prefix string) (string, bool) {
	if len(msg) > len(prefix)+2 && msg[:len(prefix)] == prefix && msg[len(prefix):len(prefix)+2] == ": " {
		return msg[len(prefix)+2:], true
	}
	return "", msg == prefix
}
