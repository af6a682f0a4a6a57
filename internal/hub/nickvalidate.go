package hub

import (
	"strings"
	"time"

	"vhub/internal/abuse"
	"vhub/internal/config"
	"vhub/internal/identity"
)

// defaultForbidden is the set of NMDC protocol metacharacters that can
// never appear in a nick regardless of configuration.
const defaultForbidden = "$|<> "

// ValidateNick runs the nick validation pipeline against a candidate nick,
// the (possibly nil) RegData loaded for it, the currently connected-user
// collection (hash collision check), and the temp-nick-ban table. It
// returns a structured (reason, detail) pair for $BadNick on failure, or
// ("", "", true) on success.
func ValidateNick(nick string, reg *identity.RegData, users *identity.Collection, bans *abuse.TempBanTable, cfg config.NickConfig) (reason, detail string, ok bool) {
	forbidden := defaultForbidden + cfg.Forbidden
	for _, r := range nick {
		if strings.ContainsRune(forbidden, r) {
			return "InvalidChars", "nick contains a forbidden character", false
		}
	}

	registered := reg != nil

	if !registered {
		if cfg.MinLength > 0 && len(nick) < cfg.MinLength {
			return "TooShort", "nick is shorter than the minimum length", false
		}
		if cfg.MaxLength > 0 && len(nick) > cfg.MaxLength {
			return "TooLong", "nick is longer than the maximum length", false
		}
		if cfg.Allowed != "" {
			for _, r := range nick {
				if !strings.ContainsRune(cfg.Allowed, r) {
					return "InvalidChars", "nick contains a character outside the allowed set", false
				}
			}
		}
		if cfg.RequiredPrefix != "" {
			has := strings.HasPrefix(nick, cfg.RequiredPrefix)
			if cfg.PrefixCaseFold {
				has = strings.HasPrefix(strings.ToLower(nick), strings.ToLower(cfg.RequiredPrefix))
			}
			if !has {
				return "MissingPrefix", "nick must start with the required prefix", false
			}
		}
		if strings.HasPrefix(nick, "[OP]") {
			return "ReservedPrefix", "the [OP] prefix is reserved for registered operators", false
		}
	}

	if users.Get(identity.HashNick(nick)) != nil {
		return "Taken", "a user with that nick is already connected", false
	}

	if _, _, banned := bans.CheckNick(nick, time.Now()); banned {
		return "Banned", "this nick is temporarily banned", false
	}

	return "", "", true
}
