package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/session"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// NewStreamCommand constructs the `stream` subcommand. It opens one session
// stream and prints each frame until the server sends a terminal one.
func NewStreamCommand(baseURL BaseURLFunc) *cobra.Command {
	streamCmd := &cobra.Command{
		Use:   "stream",
		Short: "Attach to a session stream and print frames",
		RunE: func(cmd *cobra.Command, _ []string) error {
			feature, _ := cmd.Flags().GetString("feature")
			chat, _ := cmd.Flags().GetString("chat")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			decode, _ := cmd.Flags().GetBool("decode")

			if chat == "" {
				// A fresh chat starts a fresh session.
				chat = "chat-" + uuid.NewString()[:8]
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			httpc := &http.Client{}
			start := time.Now()
			resp, err := openStream(ctx, httpc, baseURL(), feature, chat)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			var (
				frames   int
				firstAt  time.Time
				terminal frameClass
				failure  session.ErrorRecord
				ended    bool
			)
			err = readEvents(resp.Body, func(payload []byte) (bool, error) {
				if frames == 0 {
					firstAt = time.Now()
				}
				frames++
				if decode {
					_ = enc.Encode(decodedFrame(payload))
				} else {
					_, _ = fmt.Fprintln(out, string(payload))
				}
				class, rec := classifyFrame(payload)
				if class == frameMessage {
					return false, nil
				}
				terminal, failure, ended = class, rec, true
				return true, nil
			})
			if err != nil {
				return fmt.Errorf("stream read: %w", err)
			}

			ttfb := time.Duration(0)
			if frames > 0 {
				ttfb = firstAt.Sub(start)
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "frames: %d  ttfb: %s  total: %s\n",
				frames, ttfb.Round(time.Millisecond), time.Since(start).Round(time.Millisecond))

			if !ended {
				return fmt.Errorf("stream ended without a terminal frame")
			}
			if terminal == frameError {
				return fmt.Errorf("stream ended with error: %s", failure.Error)
			}
			return nil
		},
	}
	streamCmd.Flags().StringP("feature", "f", "default", "Feature identifier")
	streamCmd.Flags().StringP("chat", "c", "", "Chat identifier (random when empty)")
	streamCmd.Flags().Duration("timeout", 0, "Client-side ceiling for the whole stream (0 = none)")
	streamCmd.Flags().Bool("decode", false, "Print frames as decoded JSON envelopes instead of raw payloads")
	return streamCmd
}
