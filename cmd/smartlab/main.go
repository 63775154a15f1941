// Command smartlab is the terminal front-end for the SmartLab backend:
// login and session management, the per-role resource workflows, and a
// local sandbox backend for development.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/smartlab/smartlab/internal/config"
	"github.com/smartlab/smartlab/internal/gateway"
	"github.com/smartlab/smartlab/internal/platform/activity"
	"github.com/smartlab/smartlab/internal/platform/auth"
	"github.com/smartlab/smartlab/internal/platform/sandbox"
	"github.com/smartlab/smartlab/internal/platform/tokenstore"
	"github.com/smartlab/smartlab/internal/platform/transport"
	"github.com/smartlab/smartlab/internal/session"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:           "smartlab",
		Short:         "SmartLab medical lab client",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		loginCmd(),
		logoutCmd(),
		registerCmd(),
		whoamiCmd(),
		profileCmd(),
		passwdCmd(),
		patientsCmd(),
		appointmentsCmd(),
		reportsCmd(),
		paymentsCmd(),
		complaintsCmd(),
		usersCmd(),
		sandboxCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app is one fully wired client: config, token store, audit pipeline,
// session controller, transport, and the resource facades.
type app struct {
	cfg   *config.Config
	log   zerolog.Logger
	ctrl  *session.Controller
	gw    *gateway.Gateway
	audit *activity.Logger
}

func newApp(ctx context.Context) (*app, error) {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if os.Getenv("ENV") != "production" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(zerolog.WarnLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := tokenstore.NewFileStore(cfg.StateDir)
	if err != nil {
		return nil, err
	}

	audit := activity.New(activity.Options{
		Enabled:   cfg.ActivityLoggingEnabled(),
		BaseURL:   cfg.APIBaseURL,
		UserAgent: "smartlab-cli/" + version,
		Logger:    logger,
	})

	ctrl := session.New(store, audit, logger)
	client := transport.New(transport.Options{
		BaseURL:       cfg.APIBaseURL,
		Tokens:        ctrl.Token,
		OnAuthFailure: ctrl.Invalidate,
		Timeout:       time.Duration(cfg.HTTPTimeoutSecs) * time.Second,
		Logger:        logger,
	})
	gw := gateway.New(client, audit, ctrl.Caller)
	ctrl.BindAuth(gw.Auth)

	ctrl.Bootstrap(ctx)

	return &app{cfg: cfg, log: logger, ctrl: ctrl, gw: gw, audit: audit}, nil
}

// Close drains the audit queue before the process exits.
func (a *app) Close() { a.audit.Close() }

// run wires an app into a cobra RunE.
func run(fn func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, a, cmd, args)
	}
}

// admit consults the route guard before a command dispatches, mirroring
// what the navigation layer does for screens.
func (a *app) admit(path string, roles []auth.Role, perms []auth.Permission) error {
	d := auth.Admit(a.ctrl, path, roles, perms)
	switch d.Verdict {
	case auth.VerdictAllow:
		return nil
	case auth.VerdictLogin:
		return fmt.Errorf("not logged in; run \"smartlab login\" first")
	case auth.VerdictDeniedRole:
		return fmt.Errorf("access denied: %s requires role %v, you are %q", path, d.RequiredRoles, d.ActualRole)
	case auth.VerdictDeniedPermission:
		return fmt.Errorf("access denied: missing permissions %v", d.Missing)
	}
	return fmt.Errorf("session is still loading")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseBody decodes the --data flag into the request map.
func parseBody(cmd *cobra.Command) (map[string]any, error) {
	raw, _ := cmd.Flags().GetString("data")
	if raw == "" {
		return nil, fmt.Errorf("--data is required")
	}
	body := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return nil, fmt.Errorf("--data is not valid JSON: %w", err)
	}
	return body, nil
}

// ---------------------------------------------------------------------------
// Auth commands
// ---------------------------------------------------------------------------

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and persist the session token",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")

			res := a.ctrl.Login(ctx, email, password)
			if !res.Success {
				return fmt.Errorf("%s", res.Message)
			}
			u := a.ctrl.User()
			fmt.Printf("Logged in as %s (%s)\n", u.FullName(), u.Role)
			return nil
		}),
	}
	cmd.Flags().String("email", "", "Account email")
	cmd.Flags().String("password", "", "Account password")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and clear the stored token",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if !a.ctrl.Authenticated() {
				fmt.Println("Not logged in.")
				return nil
			}
			a.ctrl.Logout(ctx)
			fmt.Println("Logged out.")
			return nil
		}),
	}
}

func registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a patient account and log in",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			body, err := parseBody(cmd)
			if err != nil {
				return err
			}
			res := a.ctrl.Register(ctx, body)
			if !res.Success {
				for _, f := range res.Errors {
					fmt.Fprintf(os.Stderr, "  %s: %s\n", f.Name(), f.Text())
				}
				return fmt.Errorf("%s", res.Message)
			}
			u := a.ctrl.User()
			fmt.Printf("Registered and logged in as %s (%s)\n", u.FullName(), u.Role)
			return nil
		}),
	}
	cmd.Flags().String("data", "", `Registration JSON, e.g. '{"email":"...","firstName":"...","password":"..."}'`)
	return cmd
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			u := a.ctrl.User()
			if u == nil {
				fmt.Println("Not logged in.")
				return nil
			}
			out := map[string]any{
				"user":        u,
				"permissions": auth.Granted(u.Role),
			}
			if exp, okk := a.ctrl.TokenExpiry(); okk {
				out["tokenExpires"] = exp.Format(time.RFC3339)
			}
			return printJSON(out)
		}),
	}
}

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage the current user's profile",
	}

	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Update profile fields",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/profile", nil, []auth.Permission{auth.PermProfileWrite}); err != nil {
				return err
			}
			body, err := parseBody(cmd)
			if err != nil {
				return err
			}
			res := a.ctrl.UpdateProfile(ctx, body)
			if !res.Success {
				return fmt.Errorf("%s", res.Message)
			}
			return printJSON(a.ctrl.User())
		}),
	}
	updateCmd.Flags().String("data", "", `Profile JSON, e.g. '{"phone":"555-0101"}'`)
	cmd.AddCommand(updateCmd)
	return cmd
}

func passwdCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the account password",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/profile/password", nil, []auth.Permission{auth.PermProfileWrite}); err != nil {
				return err
			}
			current, _ := cmd.Flags().GetString("current")
			next, _ := cmd.Flags().GetString("new")
			res := a.ctrl.ChangePassword(ctx, current, next)
			if !res.Success {
				return fmt.Errorf("%s", res.Message)
			}
			fmt.Println("Password changed; session token rotated.")
			return nil
		}),
	}
	cmd.Flags().String("current", "", "Current password")
	cmd.Flags().String("new", "", "New password")
	return cmd
}

// ---------------------------------------------------------------------------
// Sandbox
// ---------------------------------------------------------------------------

func sandboxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sandbox",
		Short: "Run a local in-memory SmartLab backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
			fmt.Printf("Sandbox backend on :%s — seeded accounts:\n", cfg.SandboxPort)
			fmt.Println("  admin@smartlab.test / Admin123       (superadmin)")
			fmt.Println("  reception@smartlab.test / Recep123   (receptionist)")
			fmt.Println("  patient@smartlab.test / Patient123   (patient)")
			return sandbox.New(logger).Start(":" + cfg.SandboxPort)
		},
	}
}
