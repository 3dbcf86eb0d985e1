package cli

import (
	"fmt"
	"io"
	"os"

	apperrors "github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/errors"
)

// ErrorHandler turns coded errors into messages for the terminal.
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Handle prints err and returns it unchanged.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeConfigInvalid:
		fmt.Fprintf(h.Out, "%s\n", apperrors.Message(err))
		fmt.Fprintf(h.Out, "Check the config file or the SAGRADA_* environment variables.\n")

	case apperrors.ErrCodeLoginConflict:
		fmt.Fprintf(h.Out, "Login refused: %s\n", apperrors.Message(err))
		fmt.Fprintf(h.Out, "Pick another username.\n")

	case apperrors.ErrCodeLoginInvalid:
		fmt.Fprintf(h.Out, "Login refused: %s\n", apperrors.Message(err))

	case apperrors.ErrCodeTransportFailure:
		fmt.Fprintf(h.Out, "Connection problem: %s\n", apperrors.Message(err))
		if h.Verbose {
			fmt.Fprintf(h.Out, "Cause: %v\n", err)
		}

	default:
		fmt.Fprintf(h.Out, "Error: %v\n", err)
	}

	if h.Verbose {
		if appErr, ok := err.(*apperrors.Error); ok {
			fmt.Fprintf(h.Out, "\nError details:\n%s\n", appErr.ToJSON())
		}
	}
	return err
}
