package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"
)

var (
	tapURL  string
	tapJQ   string
	tapRaw  bool
	tapSend []string
)

var tapCmd = &cobra.Command{
	Use:   "tap",
	Short: "Stream a gateway session's events to the terminal",
	Long: `Connects to a gateway realtime endpoint as a client and prints every
event it receives. Useful for watching what a session does without a voice
frontend.

An optional jq expression filters or reshapes each event before printing:

  voicerag tap --url ws://localhost:8765/realtime --jq '.type'
  voicerag tap --url ws://localhost:8765/realtime --jq 'select(.type == "response.done")'`,
	RunE: runTap,
}

func init() {
	tapCmd.Flags().StringVar(&tapURL, "url", "ws://localhost:8765/realtime", "gateway realtime endpoint")
	tapCmd.Flags().StringVar(&tapJQ, "jq", "", "jq expression applied to each event")
	tapCmd.Flags().BoolVar(&tapRaw, "raw", false, "print raw frames without styling")
	tapCmd.Flags().StringArrayVar(&tapSend, "send", nil, "JSON event to send after connecting (repeatable)")
	rootCmd.AddCommand(tapCmd)
}

var (
	tapTypeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
	tapTimeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
	tapBinaryStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#6e7681"))
)

func runTap(cmd *cobra.Command, args []string) error {
	var query *gojq.Query
	if tapJQ != "" {
		var err error
		query, err = gojq.Parse(tapJQ)
		if err != nil {
			return fmt.Errorf("parse jq expression: %w", err)
		}
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.Dial(tapURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", tapURL, err)
	}
	defer conn.Close()
	fmt.Println(tapTimeStyle.Render("connected to " + tapURL))

	for _, event := range tapSend {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(event)); err != nil {
			return fmt.Errorf("send event: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if messageType != websocket.TextMessage {
			fmt.Println(tapBinaryStyle.Render(fmt.Sprintf("[binary frame, %d bytes]", len(data))))
			continue
		}
		printEvent(data, query)
	}
}

// printEvent renders one text frame, applying the jq filter when present.
// Events the filter drops produce no output.
func printEvent(data []byte, query *gojq.Query) {
	if tapRaw && query == nil {
		fmt.Println(string(data))
		return
	}

	var event any
	if err := json.Unmarshal(data, &event); err != nil {
		fmt.Println(string(data))
		return
	}

	values := []any{event}
	if query != nil {
		values = values[:0]
		iter := query.Run(event)
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				fmt.Fprintln(os.Stderr, tapTimeStyle.Render("jq: "+err.Error()))
				continue
			}
			values = append(values, v)
		}
	}

	stamp := tapTimeStyle.Render(time.Now().Format("15:04:05.000"))
	for _, v := range values {
		if tapRaw {
			out, _ := json.Marshal(v)
			fmt.Println(string(out))
			continue
		}
		label := ""
		if m, ok := event.(map[string]any); ok {
			if t, ok := m["type"].(string); ok {
				label = tapTypeStyle.Render(t)
			}
		}
		out, _ := json.Marshal(v)
		fmt.Printf("%s %s %s\n", stamp, label, out)
	}
}
