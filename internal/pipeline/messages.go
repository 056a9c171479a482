package pipeline

import (
	"errors"
	"fmt"

	"github.com/evanw/esbuild/pkg/api"
)

// MessagesError converts esbuild messages into a single joined error.
func MessagesError(msgs []api.Message) error {
	errs := make([]error, 0, len(msgs))
	for _, msg := range msgs {
		errs = append(errs, errors.New(FormatMessage(msg)))
	}
	return errors.Join(errs...)
}

// FormatMessage renders an esbuild message as file:line:column: text.
func FormatMessage(msg api.Message) string {
	if msg.Location == nil {
		return msg.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
}
