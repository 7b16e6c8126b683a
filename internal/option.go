package internal

import (
	"io"
	"os"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithIO replaces the process streams: the MCP protocol runs over in and out,
// logs go to errOut.
func WithIO(in io.Reader, out, errOut io.Writer) Option {
	return func(a *application) {
		a.stdin, a.stdout, a.stderr = in, out, errOut
	}
}

func newApplication(opts ...Option) *application {
	app := &application{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(app)
	}
	return app
}
