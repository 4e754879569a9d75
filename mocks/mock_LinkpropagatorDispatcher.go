package mocks

import (
	context "context"

	mock "github.com/stretchr/testify/mock"
	models "github.com/wheelibin/yeetlight/internal/models"
)

// MockLinkpropagatorDispatcher is a testify mock of the Dispatcher type
type MockLinkpropagatorDispatcher struct {
	mock.Mock
}

// DispatchLinked provides a mock function with given fields: ctx, origin, name, intent
func (_m *MockLinkpropagatorDispatcher) DispatchLinked(ctx context.Context, origin string, name string, intent models.Intent) error {
	ret := _m.Called(ctx, origin, name, intent)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, models.Intent) error); ok {
		r0 = rf(ctx, origin, name, intent)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockLinkpropagatorDispatcher creates a new instance of MockLinkpropagatorDispatcher. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockLinkpropagatorDispatcher(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockLinkpropagatorDispatcher {
	mock := &MockLinkpropagatorDispatcher{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
