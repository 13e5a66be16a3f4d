package platform

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"github.com/rolegate/rolegate/internal/logging"
)

// Discord grants roles through the Discord gateway. Role assignment uses
// the REST API; the gateway connection only exists so the bot shows as
// online and Ready can gate grants until the session is established.
type Discord struct {
	session *discordgo.Session
	ready   atomic.Bool
}

// NewDiscord creates a Discord granter from a bot token. Call Open before
// granting and Close on shutdown.
func NewDiscord(token string) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	d := &Discord{session: session}
	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		d.ready.Store(true)
		logging.L(context.Background()).Info("discord gateway ready",
			"username", r.User.Username, "guilds", len(r.Guilds))
	})
	session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		d.ready.Store(false)
	})
	return d, nil
}

func (d *Discord) Open() error {
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	return nil
}

func (d *Discord) Close() error {
	d.ready.Store(false)
	return d.session.Close()
}

func (d *Discord) Ready() bool {
	return d.ready.Load()
}

func (d *Discord) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	if !d.Ready() {
		return ErrUnavailable
	}
	err := d.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
	if err != nil {
		return mapRESTError(err)
	}
	return nil
}

func mapRESTError(err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownUser:
			return ErrMemberNotFound
		case discordgo.ErrCodeUnknownRole:
			return ErrRoleNotFound
		}
	}
	return fmt.Errorf("discord role grant: %w", err)
}

var _ Granter = (*Discord)(nil)
