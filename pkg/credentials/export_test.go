package credentials

// SetLookupEnv replaces the environment lookup of m.
func (m *Manager) SetLookupEnv(fn func(string) (string, bool)) {
	m.lookupEnv = fn
}
