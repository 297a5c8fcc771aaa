package keyring

// MockStore is an in-memory Store for tests. Errors can be injected per
// operation.
type MockStore struct {
	data   map[string]string
	getErr error
	setErr error
	delErr error
}

// NewMockStore creates an empty mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]string),
	}
}

func mockKey(service, key string) string {
	return service + ":" + key
}

// Get retrieves a secret from the mock store.
func (m *MockStore) Get(service, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[mockKey(service, key)]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores a secret in the mock store.
func (m *MockStore) Set(service, key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[mockKey(service, key)] = value
	return nil
}

// Delete removes a secret from the mock store.
func (m *MockStore) Delete(service, key string) error {
	if m.delErr != nil {
		return m.delErr
	}
	delete(m.data, mockKey(service, key))
	return nil
}

// WithGetError makes Get fail with err.
func (m *MockStore) WithGetError(err error) *MockStore {
	m.getErr = err
	return m
}

// WithSetError makes Set fail with err.
func (m *MockStore) WithSetError(err error) *MockStore {
	m.setErr = err
	return m
}

// WithDeleteError makes Delete fail with err.
func (m *MockStore) WithDeleteError(err error) *MockStore {
	m.delErr = err
	return m
}

// WithSecret pre-populates a gan secret under ServiceName.
func (m *MockStore) WithSecret(key, value string) *MockStore {
	m.data[mockKey(ServiceName, key)] = value
	return m
}
