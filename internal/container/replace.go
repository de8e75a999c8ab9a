package container

// Replace swaps the provider for key. Lifecycle hooks of the old entry are
// dropped; decorators stay.
func (c *Container) Replace(key string, provider ProviderFunc, dependencies []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.registry.Remove(key)
	c.graph.RemoveNode(key)

	if err := c.registry.Register(key, provider, dependencies); err != nil {
		return err
	}

	if err := c.addNode(key, dependencies); err != nil {
		c.registry.Remove(key)
		return err
	}

	c.callProvideHooks(key)
	return nil
}

func (c *Container) ReplaceValue(key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.registry.Remove(key)
	c.graph.RemoveNode(key)

	if err := c.registry.RegisterValue(key, value); err != nil {
		return err
	}

	c.graph.AddNode(key, nil)
	c.callProvideHooks(key)
	return nil
}
