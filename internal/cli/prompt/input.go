// Package prompt wraps promptui with the interactive prompts the
// warden CLI uses: text input, masked passwords, confirmations, and
// list selection.
package prompt

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user cancels a prompt with Ctrl+C.
var ErrAborted = errors.New("aborted")

// IsAborted reports whether the error means the user cancelled.
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, ErrAborted)
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsAborted(err) {
		return ErrAborted
	}
	return err
}

// Input prompts for a line of text with a pre-filled default.
func Input(label, defaultValue string) (string, error) {
	p := promptui.Prompt{
		Label:   label,
		Default: defaultValue,
	}
	result, err := p.Run()
	return result, wrapError(err)
}

// InputOptional prompts for a line of text that may be left empty.
func InputOptional(label string) (string, error) {
	p := promptui.Prompt{Label: label + " (optional)"}
	result, err := p.Run()
	return result, wrapError(err)
}

// InputPort prompts for a TCP port, rejecting values outside 1-65535.
func InputPort(label string, defaultValue int) (int, error) {
	p := promptui.Prompt{
		Label:   label,
		Default: strconv.Itoa(defaultValue),
		Validate: func(input string) error {
			port, err := strconv.Atoi(input)
			if err != nil {
				return fmt.Errorf("must be a valid integer")
			}
			if port < 1 || port > 65535 {
				return fmt.Errorf("must be a valid port (1-65535)")
			}
			return nil
		},
	}

	result, err := p.Run()
	if err != nil {
		return 0, wrapError(err)
	}
	port, _ := strconv.Atoi(result)
	return port, nil
}
