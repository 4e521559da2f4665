package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type alertLine struct {
	Type    string `json:"type"`
	RakeID  string `json:"rakeId"`
	Message string `json:"message"`
	Level   string `json:"level"`
	TS      int64  `json:"ts"`
}

type tailOptions struct {
	addr  string
	types []string
	token string
	role  string
	count int
}

// wsURL maps an http(s) base address onto the alert socket.
func wsURL(addr string) (string, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/alerts"
	return u.String(), nil
}

func levelColor(level string) *color.Color {
	switch level {
	case "critical", "error":
		return color.New(color.FgRed, color.Bold)
	case "warning":
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

// tailAlerts performs the connection_init/subscribe handshake and prints each
// alert until ctx ends, the server completes the subscription, or count
// alerts have been printed (count <= 0 means no limit).
func tailAlerts(ctx context.Context, out io.Writer, o tailOptions) error {
	target, err := wsURL(o.addr)
	if err != nil {
		return err
	}
	hdr := http.Header{}
	if o.token != "" {
		hdr.Set("Authorization", "Bearer "+o.token)
	}
	if o.role != "" {
		hdr.Set("X-Role", o.role)
	}
	c, resp, err := websocket.DefaultDialer.DialContext(ctx, target, hdr)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %s", target, resp.Status)
		}
		return fmt.Errorf("dial %s: %w", target, err)
	}
	defer func() { _ = c.Close() }()

	stop := context.AfterFunc(ctx, func() {
		_ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = c.Close()
	})
	defer stop()

	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		return err
	}
	var ack wsMessage
	if err := c.ReadJSON(&ack); err != nil {
		return err
	}
	if ack.Type != "connection_ack" {
		return fmt.Errorf("expected connection_ack, got %q", ack.Type)
	}
	pl, _ := json.Marshal(map[string]any{"types": o.types})
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
		return err
	}

	seen := 0
	for {
		var m wsMessage
		if err := c.ReadJSON(&m); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		switch m.Type {
		case "ping":
			if err := c.WriteJSON(wsMessage{Type: "pong"}); err != nil {
				return err
			}
		case "next":
			var a alertLine
			if err := json.Unmarshal(m.Payload, &a); err != nil {
				continue
			}
			ts := time.UnixMilli(a.TS).Format(time.TimeOnly)
			levelColor(a.Level).Fprintf(out, "%s %-22s", ts, a.Type)
			fmt.Fprintf(out, " %s\n", a.Message)
			seen++
			if o.count > 0 && seen >= o.count {
				_ = c.WriteJSON(wsMessage{Type: "complete", ID: "1"})
				return nil
			}
		case "error":
			return errors.New("server error: " + string(m.Payload))
		case "complete":
			return nil
		}
	}
}

func newAlertsCmd(a *app) *cobra.Command {
	var o tailOptions
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Tail live alerts from a running API over WebSocket",
		Example: `  qsteel alerts --addr localhost:8080
  qsteel alerts --types rake_dispatched,ledger_broken --token $JWT`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			a.logger.Debug("tailing alerts", zap.String("addr", o.addr), zap.Strings("types", o.types))
			return tailAlerts(ctx, cmd.OutOrStdout(), o)
		},
	}
	cmd.Flags().StringVar(&o.addr, "addr", "http://localhost:8080", "API base address")
	cmd.Flags().StringSliceVar(&o.types, "types", nil, "only show these alert types")
	cmd.Flags().StringVar(&o.token, "token", "", "bearer token for hmac/jwks auth modes")
	cmd.Flags().StringVar(&o.role, "role", "", "X-Role header, honoured in dev auth mode only")
	cmd.Flags().IntVarP(&o.count, "count", "n", 0, "exit after this many alerts")
	return cmd
}
