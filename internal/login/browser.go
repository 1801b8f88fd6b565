package login

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"

	"chapterbase/pkg/logging"
)

// OpenBrowser opens the specified URL in the default web browser.
// It supports Linux, macOS, and Windows.
// Returns an error if the browser could not be opened.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	// Start the command but don't wait for it to complete
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	return nil
}

// BrowserNavigator sends the user to a URL with the system browser. When
// the browser cannot be opened, or Disabled is set, the URL is printed to
// Out so the user can open it by hand.
type BrowserNavigator struct {
	Out      io.Writer
	Disabled bool

	// open defaults to OpenBrowser.
	open func(string) error
}

// Navigate opens target in the browser or prints it.
func (n *BrowserNavigator) Navigate(target string) error {
	if !n.Disabled {
		open := n.open
		if open == nil {
			open = OpenBrowser
		}
		err := open(target)
		if err == nil {
			return nil
		}
		logging.Debug("Login", "Browser launch failed: %v", err)
		fmt.Fprintln(n.Out, "Could not open browser automatically.")
	}

	fmt.Fprintf(n.Out, "\nPlease open this URL in your browser:\n  %s\n\n", target)
	return nil
}
