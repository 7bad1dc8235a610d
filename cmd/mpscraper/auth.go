package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mpscraper/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the platform session",
	Long: `Manage the stored platform session.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Plain JSON file as a portable fallback
  - Environment variables (read-only, for CI)`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in by scanning a QR code",
	Long: `Start a QR login. The command prints a QR code URL; open it and scan the
code with the WeChat app of a platform administrator. The session is stored
once the scan is confirmed.`,
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Invalidate and remove the stored session",
	RunE:  runLogout,
}

// statusCmd represents the auth status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session and verify it against the platform",
	RunE:  runStatus,
}

// importCmd represents the auth import command
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a session copied from a logged-in browser",
	Long: `Import a session without scanning a QR code.

To get the values:
1. Log into the platform in your browser
2. Open Developer Tools (F12) and load any admin page
3. Copy the "token" query parameter from the page URL
4. Copy the Cookie request header from the Network tab`,
	RunE: runImport,
}

const loginPollInterval = 2 * time.Second

func runLogin(cmd *cobra.Command, args []string) error {
	session, err := newSessionManager()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	challenge, err := session.IssueChallenge(ctx)
	if err != nil {
		return fmt.Errorf("failed to start login: %w", err)
	}

	fmt.Println("Scan this QR code with the administrator's WeChat app:")
	fmt.Println()
	fmt.Printf("  %s\n", challenge.URL)
	fmt.Println()
	fmt.Println("Waiting for scan...")

	ticker := time.NewTicker(loginPollInterval)
	defer ticker.Stop()

	var lastStatus auth.ScanStatus = -1
	for {
		if challenge.Expired() {
			return fmt.Errorf("login challenge expired, run login again")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		status, creds := session.PollStatus(ctx, challenge.UUID)
		if status != lastStatus {
			switch status {
			case auth.StatusScannedPendingConfirm:
				fmt.Println("Scanned. Confirm the login on your device.")
			case auth.StatusExpiredOrFailed:
				return fmt.Errorf("login failed or challenge expired, run login again")
			}
			lastStatus = status
		}

		if status == auth.StatusSuccess {
			if nickname := creds.Nickname(); nickname != "" {
				fmt.Printf("Logged in as %s.\n", nickname)
			} else {
				fmt.Println("Logged in.")
			}
			return nil
		}
	}
}

func runLogout(cmd *cobra.Command, args []string) error {
	session, err := newSessionManager()
	if err != nil {
		return err
	}
	if err := session.Logout(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	session, err := newSessionManager()
	if err != nil {
		return err
	}

	creds := session.CurrentCredentials()
	if creds == nil {
		fmt.Println("No session stored. Run 'mpscraper auth login'.")
		return nil
	}

	sanitized := auth.Sanitize(creds)
	fmt.Printf("Token:       %s\n", sanitized.Token)
	fmt.Printf("Fingerprint: %s\n", sanitized.Fingerprint)
	if nickname := creds.Nickname(); nickname != "" {
		fmt.Printf("Account:     %s\n", nickname)
	}
	if creds.ExpiresAt != nil {
		fmt.Printf("Expires:     %s\n", creds.ExpiresAt.Format(time.RFC3339))
	}

	if session.Validate(cmd.Context()) {
		fmt.Println("Session:     valid")
	} else {
		fmt.Println("Session:     rejected by platform, re-login required")
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	session, err := newSessionManager()
	if err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Session token (hidden): ")
	tokenBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	token := strings.TrimSpace(string(tokenBytes))
	if token == "" {
		return fmt.Errorf("token is required")
	}

	fmt.Print("Cookie header: ")
	cookieLine, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read cookies: %w", err)
	}

	cookies := make(map[string]string)
	for _, pair := range strings.Split(strings.TrimSpace(cookieLine), ";") {
		pair = strings.TrimSpace(pair)
		if name, value, ok := strings.Cut(pair, "="); ok && name != "" {
			cookies[name] = value
		}
	}
	if len(cookies) == 0 {
		return fmt.Errorf("at least one cookie is required")
	}

	creds := &auth.Credentials{
		Token:   token,
		Cookies: cookies,
	}
	if err := session.SetCredentials(creds); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	if session.Validate(cmd.Context()) {
		fmt.Println("Session imported and verified.")
	} else {
		fmt.Println("Session imported, but the platform rejected it. Check the values.")
	}
	return nil
}

func init() {
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)
	authCmd.AddCommand(importCmd)
	rootCmd.AddCommand(authCmd)
}
