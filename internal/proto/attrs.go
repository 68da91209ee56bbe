package proto

// Well-known attribute names. The filter engine only treats AttrUUID
// specially (SelfUUID resolution); the rest are schema conventions shared by
// the directory backend and the credential verifier.
const (
	AttrName         = "name"
	AttrDisplayName  = "displayname"
	AttrUUID         = "uuid"
	AttrClass        = "class"
	AttrMember       = "member"
	AttrMemberOf     = "memberof"
	AttrPasswordHash = "password_hash"
	AttrLocked       = "account_locked"
)

// Well-known class values.
const (
	ClassAccount   = "account"
	ClassGroup     = "group"
	ClassAnonymous = "anonymous"
	ClassSystem    = "system"
)
