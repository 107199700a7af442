package errors

import "fmt"

var (
	ErrEmptyToken           = fmt.Errorf("room token is empty")
	ErrEmptyMessage         = fmt.Errorf("message is empty")
	ErrNotConnected         = fmt.Errorf("not connected to the room")
	ErrMessageBlocked       = fmt.Errorf("message blocked by content filter")
	ErrCryptoUnavailable    = fmt.Errorf("crypto primitives unavailable")
	ErrImageTooLarge        = fmt.Errorf("image exceeds the size ceiling")
	ErrUnsupportedImageType = fmt.Errorf("unsupported image type")
)
