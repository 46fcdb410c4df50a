package bot

import (
	"github.com/bwmarrin/discordgo"
)

// GetDisplayName returns the server-specific display name for a user.
// Falls back to the username, then to "Unknown".
func GetDisplayName(s *discordgo.Session, guildID, userID string) string {
	if userID == "" {
		return "System"
	}

	if s.State != nil {
		if member, err := s.State.Member(guildID, userID); err == nil {
			return memberName(member)
		}
	}

	member, err := s.GuildMember(guildID, userID)
	if err == nil && member != nil {
		return memberName(member)
	}

	user, err := s.User(userID)
	if err == nil && user != nil {
		return user.Username
	}

	return "Unknown"
}

func memberName(member *discordgo.Member) string {
	if member.Nick != "" {
		return member.Nick
	}
	if member.User != nil {
		if member.User.GlobalName != "" {
			return member.User.GlobalName
		}
		return member.User.Username
	}
	return "Unknown"
}
