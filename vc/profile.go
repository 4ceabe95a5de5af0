package vc

// Profile identifiers per the DCP profile registry. A profile names the
// combination of credential format and status convention every credential
// in a presentation must share.
const (
	ProfileVC11JWT = "vc11-sl2021/jwt"
	ProfileVC11LD  = "vc11-sl2021/ldp"
	ProfileVC20JWT = "vc20-bssl/jwt"
)

// Credential status entry types, discriminating which status-list
// convention a credential follows.
const (
	StatusTypeStatusList2021 = "StatusList2021Entry"
	StatusTypeBitstring      = "BitstringStatusListEntry"
)

// ResolveProfile maps a credential's observable characteristics onto a
// profile id: its format and the type of its status entry, empty when the
// credential declares none. The second return is false when no known
// profile matches.
func ResolveProfile(format Format, statusType string) (string, bool) {
	switch format {
	case FormatJWT:
		if statusType == StatusTypeBitstring {
			return ProfileVC20JWT, true
		}
		return ProfileVC11JWT, true
	case FormatJSONLD:
		return ProfileVC11LD, true
	}
	return "", false
}

// DefaultSignFormat returns the presentation signing format conventionally
// used with a profile.
func DefaultSignFormat(profileID string) Format {
	if profileID == ProfileVC11LD {
		return FormatJSONLD
	}
	return FormatJWT
}
