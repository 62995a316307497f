package cli

import (
	"context"
	"errors"
	"io"
)

// Execute runs the command tree with args and returns the process exit
// code. Failures are reported on stderr in text mode and as an error
// envelope on stdout in JSON mode.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return execute(ctx, &RootOptions{}, args, stdout, stderr)
}

func execute(ctx context.Context, opts *RootOptions, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	// Anything that is not an ExitError came from cobra itself: unknown
	// commands, bad flags, wrong argument counts.
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		exitErr = &ExitError{Code: ExitCommandError, ErrCode: ErrCodeGeneric, Message: err.Error()}
	}

	f := &OutputFormatter{Format: opts.Format, Writer: stderr, Verbose: opts.Verbose}
	if opts.Format == "json" {
		f.Writer = stdout
	} else {
		f.Format = "text"
	}
	_ = f.Fail(exitErr)
	return exitErr.Code
}
