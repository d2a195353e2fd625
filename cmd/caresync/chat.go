package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/avellora/caresync/internal/auth"
	"github.com/avellora/caresync/internal/channel"
	"github.com/avellora/caresync/internal/channel/funcs"
	"github.com/avellora/caresync/internal/chat"
	"github.com/avellora/caresync/internal/config"
	"github.com/avellora/caresync/internal/models"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Message a care specialist",
	}

	cmd.AddCommand(newChatOpenCmd())
	cmd.AddCommand(newChatListCmd())
	cmd.AddCommand(newChatAttachCmd())
	cmd.AddCommand(newChatSendCmd())
	cmd.AddCommand(newChatWatchCmd())
	return cmd
}

func newChatOpenCmd() *cobra.Command {
	var (
		configPath string
		topic      string
	)

	cmd := &cobra.Command{
		Use:   "open <specialist-id>",
		Short: "Open (or find) a conversation with a specialist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChatOpen(cmd, configPath, args[0], topic)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to CareSync config file")
	cmd.Flags().StringVar(&topic, "topic", "", "conversation topic")
	return cmd
}

func runChatOpen(cmd *cobra.Command, configPath, specialistID, topic string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	profile, err := auth.LastProfile(gormDB)
	if err != nil {
		return fmt.Errorf("run `caresync login` first: %w", err)
	}

	conv, err := chat.OpenConversation(gormDB, profile.UserID, specialistID, topic)
	if err != nil {
		return err
	}

	// Without a serverless backend the channel reference is provisioned
	// locally so messages flow through the record cache.
	if conv.ChannelARN == "" && cfg.API.SendMessageURL == "" {
		if err := chat.AttachChannel(gormDB, conv.ID, "local:"+conv.ID); err != nil {
			return err
		}
		conv.ChannelARN = "local:" + conv.ID
	}

	fmt.Fprintf(out, "Conversation %s\n", conv.ID)
	if conv.Topic != "" {
		fmt.Fprintf(out, "Topic: %s\n", conv.Topic)
	}
	if conv.ChannelARN == "" {
		fmt.Fprintln(out, "No channel attached yet — run `caresync chat attach` once provisioned.")
	}
	return nil
}

func newChatListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChatList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to CareSync config file")
	return cmd
}

func runChatList(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	profile, err := auth.LastProfile(gormDB)
	if err != nil {
		return fmt.Errorf("run `caresync login` first: %w", err)
	}

	convs, err := chat.ListConversations(gormDB, profile.UserID)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Fprintln(out, "No conversations.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSPECIALIST\tTOPIC\tCHANNEL")
	for _, c := range convs {
		ch := c.ChannelARN
		if ch == "" {
			ch = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.SpecialistID, c.Topic, ch)
	}
	w.Flush()
	return nil
}

func newChatAttachCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "attach <conversation-id> <channel-ref>",
		Short: "Attach a provisioned messaging channel to a conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := chat.AttachChannel(gormDB, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Attached channel to conversation %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to CareSync config file")
	return cmd
}

func newChatSendCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "send <conversation-id> <message...>",
		Short: "Send a message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChatSend(cmd, configPath, args[0], strings.Join(args[1:], " "))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to CareSync config file")
	return cmd
}

func runChatSend(cmd *cobra.Command, configPath, conversationID, content string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	engine, conv, err := buildEngine(cmd, cfg, gormDB, conversationID)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := engine.Reload(ctx); err != nil {
		return err
	}
	if err := engine.Send(ctx, content); err != nil {
		return err
	}

	msgs := engine.Messages()
	if len(msgs) == 0 {
		fmt.Fprintln(out, "Nothing sent.")
		return nil
	}
	last := msgs[len(msgs)-1]
	fmt.Fprintf(out, "Sent to %s (%s)\n", conv.SpecialistID, last.SyncID())
	return nil
}

func newChatWatchCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "watch <conversation-id>",
		Short: "Follow a conversation, printing new messages as they arrive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChatWatch(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to CareSync config file")
	return cmd
}

func runChatWatch(cmd *cobra.Command, configPath, conversationID string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	engine, _, err := buildEngine(cmd, cfg, gormDB, conversationID)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Reload(ctx); err != nil {
		return err
	}
	printMessages(out, engine.Messages())

	if cfg.Chat.DisablePolling {
		return nil
	}

	fmt.Fprintln(out, "Watching for new messages (Ctrl-C to stop)...")
	seen := len(engine.Messages())
	for snapshot := range engine.Run(ctx) {
		if len(snapshot) > seen {
			printMessages(out, snapshot[seen:])
		} else {
			// The list was replaced wholesale (e.g. server-side deletion).
			printMessages(out, snapshot)
		}
		seen = len(snapshot)
	}
	return nil
}

// buildEngine assembles a synchronization engine for one conversation,
// dispatching through the serverless backend when one is configured and
// through the local record cache otherwise.
func buildEngine(cmd *cobra.Command, cfg *config.Config, gormDB *gorm.DB, conversationID string) (*chat.Engine, *models.Conversation, error) {
	profile, err := auth.LastProfile(gormDB)
	if err != nil {
		return nil, nil, fmt.Errorf("run `caresync login` first: %w", err)
	}
	conv, err := chat.GetConversation(gormDB, conversationID)
	if err != nil {
		return nil, nil, err
	}

	store, err := chat.NewStore(gormDB)
	if err != nil {
		return nil, nil, err
	}
	dispatcher, err := buildDispatcher(cmd, cfg, gormDB, profile)
	if err != nil {
		return nil, nil, err
	}

	engine, err := chat.NewEngine(chat.EngineOpts{
		Store:        store,
		Dispatcher:   dispatcher,
		Identity:     auth.Static{UserID: profile.UserID, DisplayName: profile.DisplayName},
		PageLimit:    cfg.Chat.PageLimit,
		PollInterval: cfg.Chat.PollInterval(),
	})
	if err != nil {
		return nil, nil, err
	}
	engine.SetConversation(chat.ConversationRef{
		ConversationID: conv.ID,
		ChannelARN:     conv.ChannelARN,
	})
	return engine, conv, nil
}

// buildDispatcher picks the send path. With api.send_message_url configured,
// messages go through the serverless function using a bearer token; the
// CARESYNC_USER / CARESYNC_PASSWORD environment variables supply
// non-interactive credentials. Otherwise sends land in the local cache.
func buildDispatcher(cmd *cobra.Command, cfg *config.Config, gormDB *gorm.DB, profile *models.Profile) (channel.Dispatcher, error) {
	if cfg.API.SendMessageURL == "" {
		store, err := chat.NewStore(gormDB)
		if err != nil {
			return nil, err
		}
		return channel.NewLocalDispatcher(store, profile.UserID)
	}

	client, err := auth.NewClient(auth.ClientOpts{
		TokenURL: cfg.Auth.TokenURL,
		ClientID: cfg.Auth.ClientID,
		DB:       gormDB,
	})
	if err != nil {
		return nil, err
	}
	user, pass := os.Getenv("CARESYNC_USER"), os.Getenv("CARESYNC_PASSWORD")
	if user != "" && pass != "" {
		if _, err := client.SignIn(cmd.Context(), user, pass); err != nil {
			return nil, err
		}
	}
	return funcs.NewClient(funcs.ClientOpts{
		SendMessageURL: cfg.API.SendMessageURL,
		Tokens:         client,
	}), nil
}

func printMessages(out io.Writer, msgs []models.Message) {
	for _, m := range msgs {
		status := ""
		if m.Status == models.MessageStatusFailed {
			status = " [failed]"
		}
		fmt.Fprintf(out, "[%s] %s: %s%s\n",
			m.CreatedAt.Format("15:04"), m.SenderName, m.Content, status)
	}
}
