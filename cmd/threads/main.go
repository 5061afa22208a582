// Command threads is a small CLI for the go-threads library: it runs the
// OAuth authorization dance, refreshes long-lived tokens, and publishes
// text, single-media and carousel posts.
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	threads "github.com/threadsdev/go-threads"
	"github.com/threadsdev/go-threads/internal/logutil"
	"github.com/threadsdev/go-threads/pkg/types"
)

var (
	credsPath   string
	verboseFlag bool

	textFlag   string
	imageFlags []string
	videoFlags []string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logutil.Errorf("%v", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threads",
		Short: "Post to Threads from the command line",
		Long: "threads drives the Threads publishing API: authorize once with " +
			"`threads auth`, then publish with `threads post`. Configuration is " +
			"read from THREADS_* environment variables (or a .env file).",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logutil.SetVerbose(verboseFlag)
		},
	}

	cmd.PersistentFlags().StringVar(&credsPath, "creds", "threads-credentials.json", "Path to the credentials JSON file")
	cmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "V", false, "Enable verbose logging")

	cmd.AddCommand(newAuthCommand())
	cmd.AddCommand(newRefreshCommand())
	cmd.AddCommand(newPostCommand())
	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newQuotaCommand())
	cmd.AddCommand(newWhoamiCommand())

	return cmd
}

func newAuthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize the app and store credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := threads.ConfigFromEnv()
			if err != nil {
				return err
			}

			authURL, state, err := threads.AuthorizationURL(config)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Open this URL in your browser and authorize the app:\n\n  %s\n\n", authURL)
			fmt.Fprint(cmd.OutOrStdout(), "Paste the full callback URL here: ")

			reader := bufio.NewReader(cmd.InOrStdin())
			callbackURL, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("read callback URL: %w", err)
			}
			callbackURL = strings.TrimSpace(callbackURL)

			creds, err := threads.CompleteAuthorization(cmd.Context(), config, callbackURL, state)
			if err != nil {
				return err
			}

			if err := writeCredentials(creds); err != nil {
				return err
			}

			logutil.Infof("authorized user %s; token expires in %d seconds", creds.UserID, creds.ExpiresIn())
			return nil
		},
	}
}

func newRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the stored long-lived token",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := threads.ConfigFromEnv()
			if err != nil {
				return err
			}

			creds, err := readCredentials()
			if err != nil {
				return err
			}

			fresh, err := threads.RefreshLongLivedToken(cmd.Context(), config, creds)
			if err != nil {
				return err
			}

			if err := writeCredentials(fresh); err != nil {
				return err
			}

			logutil.Infof("refreshed token for user %s; now expires in %d seconds", fresh.UserID, fresh.ExpiresIn())
			return nil
		},
	}
}

func newPostCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post [text]",
		Short: "Publish a text, single-media or carousel post",
		Example: `  threads post "hello world"
  threads post "vacation" --image https://example.com/a.jpg
  threads post "day one" --image https://example.com/a.jpg --video https://example.com/b.mp4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if textFlag != "" {
				if text != "" {
					return errors.New("provide the text either as an argument or with --text, not both")
				}
				text = textFlag
			}

			attachments := make([]types.Media, 0, len(imageFlags)+len(videoFlags))
			for _, u := range imageFlags {
				attachments = append(attachments, types.Media{Type: types.MediaTypeImage, URL: u})
			}
			for _, u := range videoFlags {
				attachments = append(attachments, types.Media{Type: types.MediaTypeVideo, URL: u})
			}

			client, err := buildClient()
			if err != nil {
				return err
			}

			logutil.Debugf("publishing post with %d attachment(s)", len(attachments))

			postID, err := client.Publish(cmd.Context(), text, attachments)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "published post %s\n", postID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&textFlag, "text", "t", "", "Text of the post")
	cmd.Flags().StringSliceVar(&imageFlags, "image", nil, "Publicly fetchable image URL (repeatable)")
	cmd.Flags().StringSliceVar(&videoFlags, "video", nil, "Publicly fetchable video URL (repeatable)")

	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <container-id>",
		Short: "Look up a container's publishing status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := buildClient()
			if err != nil {
				return err
			}

			status, err := client.ContainerStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if status.Error != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n", status.ID, status.Status, status.Error)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", status.ID, status.Status)
			}
			return nil
		},
	}
}

func newQuotaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "quota",
		Short: "Show the current publishing quota usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := buildClient()
			if err != nil {
				return err
			}

			limit, err := client.PublishingLimit(cmd.Context())
			if err != nil {
				return err
			}

			if limit.Config != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "posts: %d of %d per %ds\n", limit.QuotaUsage, limit.Config.QuotaTotal, limit.Config.QuotaDuration)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "posts: %d\n", limit.QuotaUsage)
			}
			if limit.ReplyConfig != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "replies: %d of %d per %ds\n", limit.ReplyQuotaUsage, limit.ReplyConfig.QuotaTotal, limit.ReplyConfig.QuotaDuration)
			}
			return nil
		},
	}
}

func newWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authorized account",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := buildClient()
			if err != nil {
				return err
			}

			profile, err := client.Account(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "@%s (%s)\n", profile.Username, profile.ID)
			if profile.Biography != "" {
				fmt.Fprintln(cmd.OutOrStdout(), profile.Biography)
			}
			return nil
		},
	}
}

func buildClient() (*threads.Client, error) {
	config, err := threads.ConfigFromEnv()
	if err != nil {
		return nil, err
	}

	creds, err := readCredentials()
	if err != nil {
		return nil, err
	}

	return threads.NewClient(config, creds)
}

func readCredentials() (types.Credentials, error) {
	data, err := os.ReadFile(credsPath)
	if err != nil {
		return types.Credentials{}, fmt.Errorf("read credentials from %s (run `threads auth` first): %w", credsPath, err)
	}

	var creds types.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return types.Credentials{}, fmt.Errorf("decode credentials: %w", err)
	}
	return creds, nil
}

func writeCredentials(creds types.Credentials) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := os.WriteFile(credsPath, data, 0o600); err != nil {
		return fmt.Errorf("write credentials to %s: %w", credsPath, err)
	}
	return nil
}
