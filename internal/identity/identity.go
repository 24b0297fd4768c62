// Package identity models the UID-or-username reference used for a
// service's run-as user and the user that runs its hook commands.
package identity

import (
	"fmt"
	"strconv"
)

// Identity is a two-variant sum type: a numeric UID or a username, mirroring
// the one TOML field `user`/`action_user` can hold.
type Identity struct {
	uid    uint32
	name   string
	isName bool
}

// Root is UID 0, the default identity for a service descriptor that does
// not set `user`.
var Root = FromUID(0)

// FromUID builds an Identity from a numeric UID.
func FromUID(uid uint32) Identity {
	return Identity{uid: uid}
}

// FromName builds an Identity from a username, resolved to a UID later by
// the launcher/airup_su helper, not by this package.
func FromName(name string) Identity {
	return Identity{name: name, isName: true}
}

// IsName reports whether this Identity carries a username rather than a
// numeric UID.
func (id Identity) IsName() bool {
	return id.isName
}

// String renders the identity the way it is passed on the airup_su command
// line: the UID as a decimal string, or the username verbatim.
func (id Identity) String() string {
	if id.isName {
		return id.name
	}

	return strconv.FormatUint(uint64(id.uid), 10)
}

// UID returns the numeric UID. Valid only when IsName is false.
func (id Identity) UID() uint32 {
	return id.uid
}

// SuFlag returns the airup_su flag that selects this identity variant:
// "--uid" for a numeric UID, "-u" for a username.
func (id Identity) SuFlag() string {
	if id.isName {
		return "-u"
	}

	return "--uid"
}

// ParseTOMLValue decodes a service descriptor's `user` or
// `action_user` field, which TOML may hand back as an int64 or a string.
func ParseTOMLValue(v any) (Identity, error) {
	switch t := v.(type) {
	case nil:
		return Root, nil
	case int64:
		if t < 0 {
			return Identity{}, fmt.Errorf("identity: negative uid %d", t)
		}

		return FromUID(uint32(t)), nil
	case int:
		if t < 0 {
			return Identity{}, fmt.Errorf("identity: negative uid %d", t)
		}

		return FromUID(uint32(t)), nil
	case string:
		if uid, err := strconv.ParseUint(t, 10, 32); err == nil {
			return FromUID(uint32(uid)), nil
		}

		return FromName(t), nil
	default:
		return Identity{}, fmt.Errorf("identity: unsupported value type %T", v)
	}
}
