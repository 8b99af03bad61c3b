package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatrelay/chatrelay/internal/channel/adapters/slack"
)

// signCmd prints the headers of a signed webhook delivery, for replaying
// payloads against a running gateway.
func signCmd() *cobra.Command {
	var (
		secret    string
		timestamp string
		bodyPath  string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a Slack request body read from --body or stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("SLACK_SIGNING_SECRET")
			}
			if secret == "" {
				return errors.New("signing secret is required (--secret or SLACK_SIGNING_SECRET)")
			}
			if timestamp == "" {
				timestamp = strconv.FormatInt(time.Now().Unix(), 10)
			}
			var in io.Reader = cmd.InOrStdin()
			if bodyPath != "" && bodyPath != "-" {
				f, err := os.Open(bodyPath)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			body, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "X-Slack-Request-Timestamp: %s\n", timestamp)
			fmt.Fprintf(out, "X-Slack-Signature: %s\n", slack.Sign(secret, timestamp, body))
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret")
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "request timestamp in unix seconds (default: now)")
	cmd.Flags().StringVar(&bodyPath, "body", "", "file holding the raw body (default: stdin)")
	return cmd
}
