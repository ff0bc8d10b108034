package conversation

import "errors"

var (
	// ErrNothingToSend means the send guard rejected an empty message. It is
	// not a failure; nothing was appended.
	ErrNothingToSend = errors.New("nothing to send")
	ErrSendInFlight  = errors.New("a message is already being sent")

	ErrUnknownMode   = errors.New("unknown mode")
	ErrUnknownOption = errors.New("unknown option")
	ErrInvalidOption = errors.New("invalid option value")
)
