package main

// User is the presence record of an entered client: identity, the file it
// is visiting, and its cursor state. Path is held room-absolute; wire
// snapshots carry the relative form (see Room.userSnapshot).
//
// RegionBeg and RegionEnd are either both present or both absent, and
// RegionBeg <= RegionEnd always holds.
type User struct {
	Username    string  `json:"username"`
	Path        *string `json:"path,omitempty"`
	Point       *int    `json:"point,omitempty"`
	RegionBeg   *int    `json:"region_beg,omitempty"`
	RegionEnd   *int    `json:"region_end,omitempty"`
	ColorCursor *string `json:"color_cursor,omitempty"`
	ColorRegion *string `json:"color_region,omitempty"`
}

// Shift moves the cursor point and both region endpoints by delta.
func (u *User) Shift(delta int) {
	if u.Point != nil {
		*u.Point += delta
	}
	if u.RegionBeg != nil {
		*u.RegionBeg += delta
	}
	if u.RegionEnd != nil {
		*u.RegionEnd += delta
	}
}

// Client is one live TCP session's room-side state. The row exists from
// accept to socket close; User exists only while the client is entered.
type Client struct {
	SessionID string // stable id for logs
	Path      string // the client's own workspace root, slash-normalized with trailing separator
	Admin     bool
	Entered   bool
	User      *User
}

// EnterRoom marks the client entered under the given username.
func (c *Client) EnterRoom(username string) {
	c.User = &User{Username: username}
	c.Entered = true
}

// ExitRoom clears the client's presence. The socket stays open; a kicked
// or exited client may re-enter later.
func (c *Client) ExitRoom() {
	c.User = nil
	c.Entered = false
}

// Username returns the entered username, or "" when not entered.
func (c *Client) Username() string {
	if c.User == nil {
		return ""
	}
	return c.User.Username
}
