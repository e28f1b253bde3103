package accounts

// Client is one authenticated device (browser or app install) of a user. It
// has no identity outside its owning User document.
type Client struct {
	ID        string `bson:"id" json:"id"`
	Agent     string `bson:"agent" json:"agent"`
	Token     string `bson:"token" json:"token"`
	LastLogin int64  `bson:"lastLogin" json:"lastLogin"`
}

// User is the single document kept per registered account. Optional fields are
// pointers so that "never set" survives storage round-trips and is
// distinguishable from a zero value. Timestamps are epoch milliseconds, the
// format the deployed documents already use.
type User struct {
	UserID           string   `bson:"userid" json:"userid"`
	Name             string   `bson:"name" json:"name"`
	Hash             string   `bson:"hash" json:"hash"`
	Email            *string  `bson:"email" json:"email"`
	EmailHash        string   `bson:"emailHash,omitempty" json:"emailHash,omitempty"`
	EmailValid       bool     `bson:"emailValid" json:"emailValid"`
	EmailValidKey    *string  `bson:"emailValidKey" json:"emailValidKey"`
	EmailValidExpire *int64   `bson:"emailValidExpire" json:"emailValidExpire"`
	ClientList       []Client `bson:"clientList" json:"clientList"`
	Admin            *bool    `bson:"admin,omitempty" json:"admin,omitempty"`
	ScoreAdmin       *bool    `bson:"scoreAdmin,omitempty" json:"scoreAdmin,omitempty"`
	RegTime          int64    `bson:"regTime" json:"regTime"`
}

// ClientByID returns a pointer to the client entry with the given device id.
// At most one entry per id exists in a well-formed document.
func (u *User) ClientByID(id string) (*Client, bool) {
	for i := range u.ClientList {
		if u.ClientList[i].ID == id {
			return &u.ClientList[i], true
		}
	}
	return nil, false
}

// LookupToken returns the stored bearer token for the given device id, or
// false when the device has never logged in.
func (u *User) LookupToken(clientID string) (string, bool) {
	c, ok := u.ClientByID(clientID)
	if !ok {
		return "", false
	}
	return c.Token, true
}

// Session is the identity proof a caller presents on each authenticated
// request. There is no server-side session object: validity is recomputed
// against the User document every time.
type Session struct {
	UserID      string
	ClientID    string
	ClientToken string
}

// EmailChangeResult distinguishes the three outcomes of ChangeEmail.
type EmailChangeResult int

const (
	// EmailCleared means the address was removed.
	EmailCleared EmailChangeResult = iota
	// EmailAlreadyValid means the user already has a confirmed address,
	// which this path refuses to overwrite.
	EmailAlreadyValid
	// EmailPending means a confirmation mail is on its way.
	EmailPending
)

// AdminFlag selects which of the two administrative flags an operation acts on.
type AdminFlag int

const (
	FlagAdmin AdminFlag = iota
	FlagScoreAdmin
)

// AdminResult is the tri-state outcome of SetAdminFlag. A wrong secret is a
// normal negative result, not an error.
type AdminResult int

const (
	AdminGranted AdminResult = iota
	AdminDenied
	AdminTurnedOff
)
