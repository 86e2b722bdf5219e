package login

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/session"
)

const shutdownTimeout = 5 * time.Second

// AuthURLSource returns the backend's authorization URL.
type AuthURLSource interface {
	AuthURL(ctx context.Context) (string, error)
}

// Flow runs one browser sign-in.
type Flow struct {
	source  AuthURLSource
	session *session.Session
	addr    string
	out     io.Writer
	logger  logging.Logger

	// OpenBrowser opens url with the platform's default handler.
func OpenBrowser(url string) error {
	_, err := startReaped(browserCommand(url))
	return err
}

func browserCommand(url string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return exec.Command("xdg-open", url)
	}
}

// startReaped starts cmd and waits for it in the background so the child is
// reaped once it exits. The channel receives the exit error.
func startReaped(cmd *exec.Cmd) (<-chan error, error) {
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()
	return done, nil
}
