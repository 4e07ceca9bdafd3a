package discord

// IsValidSnowflake reports whether id looks like a Discord snowflake: a
// string of 17 to 19 ASCII digits. Every externally supplied user, guild or
// role id must pass this check before being used in an outbound request;
// these values originate in free-text form fields and are the one
// injection surface of the integration.
func IsValidSnowflake(id string) bool {
	if len(id) < 17 || len(id) > 19 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}
