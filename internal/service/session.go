package service

// Session is the per-request identity cookie as the pipelines see it.
//
// UserID never fails: a missing or unreadable cookie is simply absent.
// Issue and Revoke write to the outgoing response.
type Session interface {
	UserID() (string, bool)
	Issue(userID string) error
	Revoke() error
}

// Hasher hashes and verifies passwords. A mismatch is (false, nil).
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(hash, plaintext string) (bool, error)
}

// Paths are the entry points pipelines redirect to.
type Paths struct {
	SignIn string
	Home   string
}

var DefaultPaths = Paths{SignIn: "/signin", Home: "/mypage"}
