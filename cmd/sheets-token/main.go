// Command sheets-token runs the OAuth consent flow for the Sheets scope and
// prints an access token usable as accessToken in /api/sync requests.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	neturl "net/url"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/sheets/v4"

	"moneymanager/internal/cli"
	"moneymanager/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentBackup)

	cfg, err := oauthConfig()
	if err != nil {
		logger.Error("OAuth client configuration failed", log.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	tok, err := authorize(ctx, cfg)
	if err != nil {
		logger.Error("Authorization failed", log.FieldError, err)
		os.Exit(1)
	}

	if out := os.Getenv("GOOGLE_OAUTH_TOKEN_FILE"); out != "" {
		if err := saveToken(out, tok); err != nil {
			logger.Error("Failed to save token", log.FieldError, err, "path", out)
			os.Exit(1)
		}
		fmt.Printf("Saved token to %s\n", out)
	}
	fmt.Printf("accessToken (expires %s):\n%s\n", tok.Expiry.Format(time.RFC3339), tok.AccessToken)
}

func oauthConfig() (*oauth2.Config, error) {
	var b []byte
	switch {
	case os.Getenv("GOOGLE_OAUTH_CLIENT_JSON") != "":
		b = []byte(os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"))
	case os.Getenv("GOOGLE_OAUTH_CLIENT_FILE") != "":
		var err error
		b, err = os.ReadFile(os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"))
		if err != nil {
			return nil, fmt.Errorf("read client file: %w", err)
		}
	default:
		return nil, fmt.Errorf("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
	}

	cfg, err := google.ConfigFromJSON(b, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	port := os.Getenv("OAUTH_REDIRECT_PORT")
	if port == "" {
		port = "8085"
	}
	// The redirect URI must be registered on the OAuth client.
	cfg.RedirectURL = "http://localhost:" + port + "/callback"
	return cfg, nil
}

func authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	state, err := randomState()
	if err != nil {
		return nil, err
	}

	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("error") != "":
			http.Error(w, "OAuth error: "+q.Get("error"), http.StatusBadRequest)
			results <- result{err: fmt.Errorf("consent denied: %s", q.Get("error"))}
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
		default:
			fmt.Fprintln(w, "You may close this window and return to the terminal.")
			results <- result{code: q.Get("code")}
		}
	})

	addr, err := listenAddr(cfg.RedirectURL)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	defer srv.Close()

	fmt.Printf("Open this URL to authorize:\n%s\n", cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	select {
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		tok, err := cfg.Exchange(ctx, res.code)
		if err != nil {
			return nil, fmt.Errorf("token exchange: %w", err)
		}
		return tok, nil
	case <-time.After(5 * time.Minute):
		return nil, fmt.Errorf("authorization timed out")
	case <-ctx.Done():
		return nil, fmt.Errorf("interrupted")
	}
}

// listenAddr returns the local address the redirect URL points at.
func listenAddr(redirect string) (string, error) {
	u, err := neturl.Parse(redirect)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}
	if u.Hostname() != "localhost" || u.Port() == "" {
		return "", fmt.Errorf("redirect URL %q must be localhost with a port", redirect)
	}
	return ":" + u.Port(), nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func saveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}
