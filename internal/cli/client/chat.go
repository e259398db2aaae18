package client

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kernelworks/kernelbot/internal/activity"
)

const (
	envBotURL     = "KERNELBOT_URL"
	defaultBotURL = "http://localhost:3978"
)

// ChatCmd creates the chat command, a terminal conversation with a running
// bot. It plays the channel's role: activities are posted to the bot's
// activity endpoint and replies are delivered back to a local callback
// server, the same flow the emulator uses.
func ChatCmd() *cobra.Command {
	var (
		botURL string
		userID string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a running bot from the terminal",
		Long:  "Starts an interactive conversation against a bot's activity endpoint.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if botURL == "" {
				botURL = os.Getenv(envBotURL)
			}
			if botURL == "" {
				botURL = defaultBotURL
			}
			return runChat(botURL, userID)
		},
	}

	cmd.Flags().StringVar(&botURL, "bot-url", "", "Bot base URL (default "+defaultBotURL+")")
	cmd.Flags().StringVar(&userID, "user", "terminal-user", "User ID to chat as")

	return cmd
}

func runChat(botURL, userID string) error {
	conversationID := uuid.NewString()

	callback, err := startCallbackServer()
	if err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}
	defer callback.Close()

	session := &chatSession{
		botURL:         strings.TrimRight(botURL, "/"),
		serviceURL:     callback.URL(),
		conversationID: conversationID,
		userID:         userID,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
	}

	// Announce the user joining so the bot sends its welcome message.
	if err := session.send(conversationUpdate(conversationID, userID, session.serviceURL)); err != nil {
		return err
	}

	fmt.Println("Connected. Type a message, or /quit to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/quit" || text == "/exit" {
			break
		}

		message := activity.NewUserMessage(conversationID, userID, text)
		message.ServiceURL = session.serviceURL
		message.ChannelID = activity.ChannelEmulator
		if err := session.send(message); err != nil {
			fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
		}

		// Give out-of-band replies a moment to land before re-prompting.
		time.Sleep(300 * time.Millisecond)
	}

	return scanner.Err()
}

type chatSession struct {
	botURL         string
	serviceURL     string
	conversationID string
	userID         string
	httpClient     *http.Client
}

func (s *chatSession) send(a *activity.Activity) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Post(s.botURL+"/api/messages", "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("bot returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func conversationUpdate(conversationID, userID, serviceURL string) *activity.Activity {
	return &activity.Activity{
		Type:         activity.TypeConversationUpdate,
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		ChannelID:    activity.ChannelEmulator,
		ServiceURL:   serviceURL,
		From:         activity.Account{ID: userID},
		Recipient:    activity.Account{ID: "bot"},
		Conversation: &activity.ConversationAccount{ID: conversationID},
		MembersAdded: []activity.Account{{ID: userID}},
	}
}

// callbackServer receives the bot's out-of-band replies and prints them.
type callbackServer struct {
	listener net.Listener
	server   *http.Server
}

func startCallbackServer() (*callbackServer, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v3/conversations/", func(w http.ResponseWriter, r *http.Request) {
		var reply activity.Activity
		if err := json.NewDecoder(r.Body).Decode(&reply); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		printReply(&reply)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": uuid.NewString()})
	})

	srv := &http.Server{Handler: mux}
	go func() { _ = srv.Serve(listener) }()

	return &callbackServer{listener: listener, server: srv}, nil
}

func (c *callbackServer) URL() string {
	return "http://" + c.listener.Addr().String()
}

func (c *callbackServer) Close() {
	_ = c.server.Close()
}

func printReply(reply *activity.Activity) {
	switch reply.Type {
	case activity.TypeTyping:
		return
	case activity.TypeTrace:
		fmt.Printf("\n[trace] %s\n", reply.Label)
	case activity.TypeMessage:
		if reply.Text != "" {
			fmt.Printf("\nbot: %s\n", reply.Text)
		}
		for _, attachment := range reply.Attachments {
			pretty, err := json.MarshalIndent(attachment.Content, "", "  ")
			if err != nil {
				continue
			}
			fmt.Printf("\n[%s]\n%s\n", attachment.ContentType, string(pretty))
		}
	}
}
