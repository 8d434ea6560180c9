package domain

// Event is a Slack "message" event as delivered inside an event_callback.
// Only the fields the relay acts on are decoded.
type Event struct {
	Type    string       `json:"type"`
	Subtype string       `json:"subtype,omitempty"`
	Text    *string      `json:"text,omitempty"` // nil when the payload carries no text
	User    string       `json:"user"`
	Channel string       `json:"channel"`
	EventTS string       `json:"event_ts"`
	Files   []Attachment `json:"files,omitempty"`
}

// HasText reports whether the event carried a text field.
func (e Event) HasText() bool { return e.Text != nil }

// TextValue returns the event text, or "" when absent.
func (e Event) TextValue() string {
	if e.Text == nil {
		return ""
	}
	return *e.Text
}

// Clone returns a copy of the event that shares no mutable state with e.
func (e Event) Clone() Event {
	c := e
	if e.Text != nil {
		t := *e.Text
		c.Text = &t
	}
	if e.Files != nil {
		c.Files = make([]Attachment, len(e.Files))
		copy(c.Files, e.Files)
	}
	return c
}

// SnippetMode is the file mode Slack assigns to text snippets.
const SnippetMode = "snippet"

// UntitledTitle is the title Slack gives snippets the user did not name.
const UntitledTitle = "Untitled"

// Attachment describes one file shared with a message.
type Attachment struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Mode  string `json:"mode"`
	URL   string `json:"url_private_download"`
	Title string `json:"title"`
}

// IsSnippet reports whether the attachment is a text snippet. Images and
// other uploads are not relayed.
func (a Attachment) IsSnippet() bool { return a.Mode == SnippetMode }

// Category is the derived classification of an Event.
type Category string

const (
	CategoryFileAttachment Category = "file_attachment"
	CategoryGreeting       Category = "greeting"
	CategoryUnhandled      Category = "unhandled"
)

// Receipt is the relay's human-readable status string. It is posted back to
// the user verbatim.
type Receipt string

// ResolvedUser is the outcome of a display-name lookup. The zero value is
// the unresolved marker.
type ResolvedUser struct {
	DisplayName string
	Resolved    bool
}

// Unresolved is the marker returned when a display name could not be found.
var Unresolved = ResolvedUser{}

// Resolve wraps a known display name.
func Resolve(name string) ResolvedUser {
	return ResolvedUser{DisplayName: name, Resolved: true}
}

func (u ResolvedUser) String() string {
	if !u.Resolved {
		return "unresolved"
	}
	return u.DisplayName
}
