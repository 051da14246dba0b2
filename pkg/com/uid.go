package com

import "github.com/rs/xid"

// Uid is a process-unique, lexicographically sortable session id.
type Uid struct {
	xid.ID
}

var NilUid = Uid{xid.NilID()}

func NewUid() Uid { return Uid{xid.New()} }

func UidFrom(s string) (Uid, error) {
	id, err := xid.FromString(s)
	return Uid{id}, err
}

func (u Uid) IsEmpty() bool { return u.IsNil() }
func (u Uid) Short() string { s := u.String(); return s[:3] + "." + s[len(s)-3:] }
