package discord

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Typed outcomes for the failure modes the core is allowed to care about.
// Everything else stays an opaque error.
var (
	// ErrDMClosed means the recipient does not accept direct messages.
	ErrDMClosed = errors.New("recipient has closed DMs")
	// ErrAlreadyDeleted means the target message no longer exists.
	ErrAlreadyDeleted = errors.New("message already deleted")
)

// Messenger is the outbound surface the moderation core talks to. The
// concrete session lives here so core packages never see discordgo error
// codes.
type Messenger interface {
	Reply(channelID, messageID, text string) error
	DirectMessage(userID, text string) error
	ChannelMessage(channelID, text string) error
	DeleteMessage(channelID, messageID string) error
	GrantRole(guildID, userID, roleID string) error
	RevokeRole(guildID, userID, roleID string) error
	MemberHasRole(guildID, userID, roleID string) (bool, error)
	FindRole(guildID, name string) (string, error)
	FindOrCreateRole(guildID, name string) (string, error)
	IsAdmin(userID, channelID string) (bool, error)
}

// Session wraps a discordgo session as a Messenger.
type Session struct {
	s *discordgo.Session
}

func NewSession(s *discordgo.Session) *Session {
	return &Session{s: s}
}

func (d *Session) Reply(channelID, messageID, text string) error {
	_, err := d.s.ChannelMessageSendReply(channelID, text, &discordgo.MessageReference{
		ChannelID: channelID,
		MessageID: messageID,
	})
	return err
}

func (d *Session) DirectMessage(userID, text string) error {
	ch, err := d.s.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = d.s.ChannelMessageSend(ch.ID, text)
	if isDiscordCode(err, discordgo.ErrCodeCannotSendMessagesToThisUser) {
		return ErrDMClosed
	}
	return err
}

func (d *Session) ChannelMessage(channelID, text string) error {
	_, err := d.s.ChannelMessageSend(channelID, text)
	return err
}

func (d *Session) DeleteMessage(channelID, messageID string) error {
	err := d.s.ChannelMessageDelete(channelID, messageID)
	if isDiscordCode(err, discordgo.ErrCodeUnknownMessage) {
		return ErrAlreadyDeleted
	}
	return err
}

func (d *Session) GrantRole(guildID, userID, roleID string) error {
	return d.s.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (d *Session) RevokeRole(guildID, userID, roleID string) error {
	return d.s.GuildMemberRoleRemove(guildID, userID, roleID)
}

func (d *Session) MemberHasRole(guildID, userID, roleID string) (bool, error) {
	member, err := d.s.GuildMember(guildID, userID)
	if err != nil {
		return false, err
	}
	for _, role := range member.Roles {
		if role == roleID {
			return true, nil
		}
	}
	return false, nil
}

// FindRole returns the ID of the named role, or "" when the guild has no
// such role.
func (d *Session) FindRole(guildID, name string) (string, error) {
	roles, err := d.s.GuildRoles(guildID)
	if err != nil {
		return "", err
	}
	for _, role := range roles {
		if role.Name == name {
			return role.ID, nil
		}
	}
	return "", nil
}

func (d *Session) FindOrCreateRole(guildID, name string) (string, error) {
	id, err := d.FindRole(guildID, name)
	if err != nil || id != "" {
		return id, err
	}
	role, err := d.s.GuildRoleCreate(guildID, &discordgo.RoleParams{Name: name})
	if err != nil {
		return "", fmt.Errorf("create role %q: %w", name, err)
	}
	return role.ID, nil
}

func (d *Session) IsAdmin(userID, channelID string) (bool, error) {
	perms, err := d.s.UserChannelPermissions(userID, channelID)
	if err != nil {
		return false, err
	}
	return perms&discordgo.PermissionAdministrator != 0, nil
}

func isDiscordCode(err error, code int) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		return restErr.Message.Code == code
	}
	return false
}
