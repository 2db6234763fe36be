package wire_errors

import (
	"errors"
)

var (
	InvalidConfiguration    = errors.New("invalid configuration")
	UnsupportedEncodingType = errors.New("unsupported encoding type")
	BlobTooLarge            = errors.New("blob too large")
	MalformedEncoding       = errors.New("malformed encoding")
	InsufficientShares      = errors.New("insufficient shares")
	DuplicateShare          = errors.New("duplicate share")
	SizeMismatch            = errors.New("size mismatch")
	BlobIDMismatch          = errors.New("blob id mismatch")
	SliverHashMismatch      = errors.New("sliver hash mismatch")
	CryptoError             = errors.New("crypto error")
	EmptyInput              = errors.New("empty input")
	MalformedKey            = errors.New("malformed public key")
	MalformedSignature      = errors.New("malformed signature")
	QuiltOversize           = errors.New("quilt oversize")
	DuplicateIdentifier     = errors.New("duplicate identifier")
	PatchNotFound           = errors.New("patch not found")
)

// Code is the numeric error kind handed across the caller boundary.
type Code int32

const (
	Code_OK Code = iota
	Code_ERROR
	Code_InvalidConfiguration
	Code_UnsupportedEncodingType
	Code_BlobTooLarge
	Code_MalformedEncoding
	Code_InsufficientShares
	Code_DuplicateShare
	Code_SizeMismatch
	Code_BlobIDMismatch
	Code_CryptoError
	Code_EmptyInput
	Code_MalformedKey
	Code_MalformedSignature
	Code_SliverHashMismatch
	Code_QuiltOversize
	Code_DuplicateIdentifier
	Code_PatchNotFound
)

var codeToErr = map[Code]error{
	Code_InvalidConfiguration:    InvalidConfiguration,
	Code_UnsupportedEncodingType: UnsupportedEncodingType,
	Code_BlobTooLarge:            BlobTooLarge,
	Code_MalformedEncoding:       MalformedEncoding,
	Code_InsufficientShares:      InsufficientShares,
	Code_DuplicateShare:          DuplicateShare,
	Code_SizeMismatch:            SizeMismatch,
	Code_BlobIDMismatch:          BlobIDMismatch,
	Code_CryptoError:             CryptoError,
	Code_EmptyInput:              EmptyInput,
	Code_MalformedKey:            MalformedKey,
	Code_MalformedSignature:      MalformedSignature,
	Code_SliverHashMismatch:      SliverHashMismatch,
	Code_QuiltOversize:           QuiltOversize,
	Code_DuplicateIdentifier:     DuplicateIdentifier,
	Code_PatchNotFound:           PatchNotFound,
}

// order matters: more specific kinds first
var errOrder = []Code{
	Code_UnsupportedEncodingType,
	Code_InvalidConfiguration,
	Code_BlobTooLarge,
	Code_MalformedEncoding,
	Code_InsufficientShares,
	Code_DuplicateShare,
	Code_SizeMismatch,
	Code_BlobIDMismatch,
	Code_SliverHashMismatch,
	Code_QuiltOversize,
	Code_DuplicateIdentifier,
	Code_PatchNotFound,
	Code_MalformedKey,
	Code_MalformedSignature,
	Code_EmptyInput,
	Code_CryptoError,
}

func (c Code) String() string {
	if c == Code_OK {
		return "OK"
	}
	if err, ok := codeToErr[c]; ok {
		return err.Error()
	}
	return "error"
}

// FromCode rebuilds an error from a code and its description. The returned
// error still matches the sentinel with errors.Is.
func FromCode(code Code, des string) error {
	if code == Code_OK {
		return nil
	}
	sentinel, ok := codeToErr[code]
	if !ok {
		return errors.New(des)
	}
	if des == "" || des == sentinel.Error() {
		return sentinel
	}
	return &codedError{sentinel: sentinel, des: des}
}

func ConvertToCode(err error) (Code, string) {
	if err == nil {
		return Code_OK, ""
	}
	for _, code := range errOrder {
		if errors.Is(err, codeToErr[code]) {
			return code, err.Error()
		}
	}
	return Code_ERROR, err.Error()
}

type codedError struct {
	sentinel error
	des      string
}

func (e *codedError) Error() string { return e.des }
func (e *codedError) Unwrap() error { return e.sentinel }
