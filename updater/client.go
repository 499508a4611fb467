package updater

// UpdateClient receives the event stream of a single update attempt. It must
// be cancelled once the consumer is done so the updater can drop the
// subscription.
type UpdateClient struct {
	Update   chan *Update
	Id       uint32
	updateId string
	updater  Updater
}

func (c *UpdateClient) Cancel() error {
	return c.updater.UnsubscribeUpdate(c)
}
