package network

import "github.com/rs/xid"

// Uid is a connection identifier.
// Allocated ids are xid strings, unique within the process lifetime.
type Uid string

const EmptyUid Uid = ""

func NewUid() Uid { return Uid(xid.New().String()) }

func ValidUid(u Uid) bool {
	_, err := xid.FromString(string(u))
	return err == nil
}

func (u Uid) IsEmpty() bool  { return u == EmptyUid }
func (u Uid) String() string { return string(u) }

// Short returns a compact form of the id for logs.
func (u Uid) Short() string {
	if len(u) < 8 {
		return string(u)
	}
	return string(u)[:3] + "." + string(u)[len(u)-3:]
}
