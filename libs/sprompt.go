package libs

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"golang.org/x/crypto/ssh/terminal"
)

func ClearCredential(c []byte) {
	for i := range c {
		c[i] = 0
	}
}

// ReadCredential prompts for a secret on the controlling terminal.
func ReadCredential(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !terminal.IsTerminal(fd) {
		return nil, errors.New("run it in terminal environment")
	}
	return readFromTERM(prompt, fd)
}

func readFromTERM(prompt string, fd int) ([]byte, error) {
	// Get the initial state of the terminal.
	initialTermState, err := terminal.GetState(fd)
	if err != nil {
		return nil, err
	}

	// Restore it in the event of an interrupt.
	// CITATION: Konstantin Shaposhnikov - https://groups.google.com/forum/#!topic/golang-nuts/kTVAbtee9UA
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		if _, ok := <-c; ok {
			_ = terminal.Restore(fd, initialTermState)
			os.Exit(1)
		}
	}()
	defer func() {
		signal.Stop(c)
		close(c)
	}()

	fmt.Fprint(os.Stderr, prompt)
	p, err := terminal.ReadPassword(fd)
	fmt.Fprintln(os.Stderr, "")
	if err != nil {
		return nil, err
	}

	return bytes.TrimSpace(p), nil
}
