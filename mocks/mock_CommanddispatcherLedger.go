package mocks

import (
	mock "github.com/stretchr/testify/mock"
	models "github.com/wheelibin/yeetlight/internal/models"
)

// MockCommanddispatcherLedger is a testify mock of the Ledger type
type MockCommanddispatcherLedger struct {
	mock.Mock
}

// Record provides a mock function with given fields: rec
func (_m *MockCommanddispatcherLedger) Record(rec models.CommandRecord) error {
	ret := _m.Called(rec)

	var r0 error
	if rf, ok := ret.Get(0).(func(models.CommandRecord) error); ok {
		r0 = rf(rec)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockCommanddispatcherLedger creates a new instance of MockCommanddispatcherLedger. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockCommanddispatcherLedger(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockCommanddispatcherLedger {
	mock := &MockCommanddispatcherLedger{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
