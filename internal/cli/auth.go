package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/roach88/stepsync/internal/api"
	"github.com/roach88/stepsync/internal/model"
)

// IdentityResult is the output of login, register and status.
type IdentityResult struct {
	State    string     `json:"state"`
	Decision string     `json:"decision"`
	UserID   int64      `json:"user_id,omitempty"`
	Email    string     `json:"email,omitempty"`
	Name     string     `json:"name,omitempty"`
	Timezone string     `json:"timezone,omitempty"`
	Subject  string     `json:"token_subject,omitempty"`
	Expires  *time.Time `json:"token_expires,omitempty"`
}

func (r IdentityResult) String() string {
	if r.UserID == 0 {
		return fmt.Sprintf("Not signed in (%s)", r.State)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Signed in as %s <%s> (user %d)", r.Name, r.Email, r.UserID)
	if r.Expires != nil {
		fmt.Fprintf(&b, "\nToken expires %s", r.Expires.Format(time.RFC3339))
	}
	return b.String()
}

func identityResult(a *app, id model.Identity) IdentityResult {
	state := a.session.State()
	return IdentityResult{
		State:    state.String(),
		Decision: string(a.session.AccessDecision()),
		UserID:   id.ID,
		Email:    id.Email,
		Name:     id.Name,
		Timezone: id.Timezone,
	}
}

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	Email    string
	Password string
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		Long: `Sign in with email and password. The session token is stored in the
local database and reused by every other command until logout.

If --password is omitted the first line of standard input is used.

Example:
  stepsync login --email ada@example.com
  echo "$PASSWORD" | stepsync login --email ada@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "account password (default: read from stdin)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runLogin(opts *LoginOptions, cmd *cobra.Command) error {
	password, err := passwordFrom(opts.Password, cmd.InOrStdin())
	if err != nil {
		return err
	}
	return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app) error {
		id, err := a.session.SignIn(ctx, api.Credentials{Email: opts.Email, Password: password})
		if err != nil {
			return failure(err)
		}
		return formatter(cmd, opts.RootOptions).Success(identityResult(a, id))
	})
}

// RegisterOptions holds flags for the register command.
type RegisterOptions struct {
	*RootOptions
	Name     string
	Email    string
	Password string
	Timezone string
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Long: `Create an account and sign into it.

The timezone defaults to the local zone of this machine.

Example:
  stepsync register --name Ada --email ada@example.com --timezone Europe/London`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&opts.Email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "account password (default: read from stdin)")
	cmd.Flags().StringVar(&opts.Timezone, "timezone", "", "IANA timezone (default: local)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runRegister(opts *RegisterOptions, cmd *cobra.Command) error {
	password, err := passwordFrom(opts.Password, cmd.InOrStdin())
	if err != nil {
		return err
	}
	tz := opts.Timezone
	if tz == "" {
		tz = time.Local.String()
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown timezone %q", tz))
	}

	return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app) error {
		id, err := a.session.SignUp(ctx, api.Registration{
			Name:     opts.Name,
			Email:    opts.Email,
			Password: password,
			Timezone: tz,
		})
		if err != nil {
			return failure(err)
		}
		return formatter(cmd, opts.RootOptions).Success(identityResult(a, id))
	})
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session",
		Long: `Remove the stored session token and tell the backend to revoke it.

The local token is removed first; a failed remote logout is ignored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				if err := a.session.SignOut(ctx); err != nil {
					return WrapExitError(ExitCommandError, "failed to clear session", err)
				}
				return formatter(cmd, rootOpts).Success("Signed out")
			})
		},
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the signed-in identity",
		Long: `Resolve the stored session token with the backend and show who is
signed in. A token the backend rejects is removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				token := a.session.RawToken()
				_ = a.session.Resolve(ctx)

				id, _ := a.session.Identity()
				result := identityResult(a, id)
				if id.ID != 0 {
					result.Subject, result.Expires = tokenClaims(token)
				}
				return formatter(cmd, rootOpts).Success(result)
			})
		},
	}
}

// tokenClaims reads the subject and expiry of a JWT without verifying it.
// The values are for display only; the backend is the authority.
func tokenClaims(token string) (string, *time.Time) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", nil
	}
	var expires *time.Time
	if claims.ExpiresAt != nil {
		t := claims.ExpiresAt.Time.UTC()
		expires = &t
	}
	return claims.Subject, expires
}

// passwordFrom returns flag, or the first line of r when flag is empty.
func passwordFrom(flag string, r io.Reader) (string, error) {
	if flag != "" {
		return flag, nil
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", WrapExitError(ExitCommandError, "failed to read password", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", NewExitError(ExitCommandError, "password is required")
	}
	return line, nil
}

// parseID reads a positive numeric id argument.
func parseID(name, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid %s %q", name, s))
	}
	return id, nil
}
