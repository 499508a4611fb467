package broadcast

// Client receives announcements that pass the version gate.
type Client struct {
	Announcements chan *Announcement
	Id            uint32
	listener      *Listener
}

func (c *Client) Cancel() {
	c.listener.unsubscribe(c)
}
