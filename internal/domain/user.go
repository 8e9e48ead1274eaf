// Package domain holds the records shared between the remote client, the
// local store and the sync pipeline.
package domain

import "fmt"

// User is a remote user record. ID is the stable external key; Login is the
// only field that may change between fetches.
type User struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// String returns "login#id".
func (u User) String() string {
	return fmt.Sprintf("%s#%d", u.Login, u.ID)
}

// UserPage is one page of a paginated user listing.
type UserPage struct {
	Users []User

	// Next is the pagination cursor for the following page (nil = last page)
	Next *int64
}

// HasNext reports whether another page follows.
func (p UserPage) HasNext() bool {
	return p.Next != nil
}
