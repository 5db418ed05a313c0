package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"sheetexpense/internal/auth"
	"sheetexpense/internal/log"

	"github.com/spf13/cobra"
)

func (a *app) loginCmd() *cobra.Command {
	var port int
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize a Google account from the terminal",
		Long: `Runs the consent flow against a loopback redirect and stores the account's
tokens, so the worker and resync can act for it. Add
http://127.0.0.1:<port>/callback to the OAuth client's redirect URIs first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.config()
			if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
				return errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
			}
			repo, err := a.openStorage(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
			if err != nil {
				return fmt.Errorf("listen for callback: %w", err)
			}
			redirect := fmt.Sprintf("http://%s/callback", ln.Addr())
			provider := auth.NewProvider(auth.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
			}).WithRedirectURL(redirect)

			login := provider.NewLogin()
			fmt.Fprintf(cmd.OutOrStdout(), "Open this URL to authorize:\n%s\n", login.URL)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			code, err := awaitCode(ctx, ln, login.State)
			if err != nil {
				return err
			}

			user, err := provider.CompleteLogin(ctx, repo, code, login.Verifier)
			if err != nil {
				return err
			}
			a.logger.Info("Account authorized", log.FieldUserID, user.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "Authorized %s (user %d)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 8085, "loopback port for the OAuth redirect")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for consent")
	return cmd
}

// awaitCode serves a single OAuth redirect on ln and returns its code.
func awaitCode(ctx context.Context, ln net.Listener, state string) (string, error) {
	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res result
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
		case subtle.ConstantTimeCompare([]byte(q.Get("state")), []byte(state)) != 1:
			res.err = errors.New("authorization state mismatch")
		case q.Get("code") == "":
			res.err = errors.New("authorization code missing")
		default:
			res.code = q.Get("code")
		}
		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "You may close this window and return to the terminal.")
		}
		select {
		case results <- res:
		default:
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	select {
	case res := <-results:
		return res.code, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for authorization: %w", ctx.Err())
	}
}
