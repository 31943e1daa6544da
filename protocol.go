package main

// Frame status values. Every server reply carries one; failure replies
// also carry a human-readable message.
const (
	stSuccess = "success"
	stFailure = "failure"
)

// buffer::update edit kinds. Anything else in add_or_delete is a protocol
// error and the frame is dropped.
const (
	opAdd    = "add"
	opDelete = "delete"
)

// Request is the typed schema for every inbound frame, parsed once at
// router entry. Fields are pointers so a handler can tell an absent field
// from a zero value; each handler validates only the fields its method
// requires.
type Request struct {
	Method      string  `json:"method"`
	Path        *string `json:"path,omitempty"`
	Username    *string `json:"username,omitempty"`
	Password    *string `json:"password,omitempty"`
	Message     *string `json:"message,omitempty"`
	File        *string `json:"file,omitempty"`
	NewName     *string `json:"newname,omitempty"`
	Contents    *string `json:"contents,omitempty"`
	AddOrDelete *string `json:"add_or_delete,omitempty"`
	Beg         *int    `json:"beg,omitempty"`
	End         *int    `json:"end,omitempty"`
	Point       *int    `json:"point,omitempty"`
	RegionBeg   *int    `json:"region_beg,omitempty"`
	RegionEnd   *int    `json:"region_end,omitempty"`
	ColorCursor *string `json:"color_cursor,omitempty"`
	ColorRegion *string `json:"color_region,omitempty"`
}

// Response is the single outbound frame shape. Handlers fill the fields
// their method defines and leave the rest to be dropped by omitempty.
// Contents is a pointer so an empty file still serializes the field.
type Response struct {
	Method      string  `json:"method"`
	Status      string  `json:"status,omitempty"`
	Message     string  `json:"message,omitempty"`
	Username    string  `json:"username,omitempty"`
	AdminName   string  `json:"admin,omitempty"` // room::kick: who kicked
	IsAdmin     *bool   `json:"is_admin,omitempty"`
	File        string  `json:"file,omitempty"`
	NewName     string  `json:"newname,omitempty"`
	Contents    *string `json:"contents,omitempty"`
	AddOrDelete string  `json:"add_or_delete,omitempty"`
	Beg         *int    `json:"beg,omitempty"`
	End         *int    `json:"end,omitempty"`
	Point       *int    `json:"point,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
	Clients     []User  `json:"clients,omitempty"`
}

func intPtr(v int) *int       { return &v }
func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
