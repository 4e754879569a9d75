package mocks

import (
	context "context"

	mock "github.com/stretchr/testify/mock"
	models "github.com/wheelibin/yeetlight/internal/models"
)

// MockApiController is a testify mock of the Controller type
type MockApiController struct {
	mock.Mock
}

// Snapshot provides a mock function with given fields:
func (_m *MockApiController) Snapshot() []models.BulbSnapshot {
	ret := _m.Called()

	var r0 []models.BulbSnapshot
	if rf, ok := ret.Get(0).(func() []models.BulbSnapshot); ok {
		r0 = rf()
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]models.BulbSnapshot)
		}
	}

	return r0
}

// Apply provides a mock function with given fields: ctx, name, intent
func (_m *MockApiController) Apply(ctx context.Context, name string, intent models.Intent) error {
	ret := _m.Called(ctx, name, intent)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, models.Intent) error); ok {
		r0 = rf(ctx, name, intent)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// EnableLink provides a mock function with given fields: name, link, enable
func (_m *MockApiController) EnableLink(name string, link string, enable bool) error {
	ret := _m.Called(name, link, enable)

	var r0 error
	if rf, ok := ret.Get(0).(func(string, string, bool) error); ok {
		r0 = rf(name, link, enable)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Retry provides a mock function with given fields: ctx, name, attr
func (_m *MockApiController) Retry(ctx context.Context, name string, attr models.Attribute) error {
	ret := _m.Called(ctx, name, attr)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, models.Attribute) error); ok {
		r0 = rf(ctx, name, attr)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Rollback provides a mock function with given fields: name, attr
func (_m *MockApiController) Rollback(name string, attr models.Attribute) error {
	ret := _m.Called(name, attr)

	var r0 error
	if rf, ok := ret.Get(0).(func(string, models.Attribute) error); ok {
		r0 = rf(name, attr)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Refresh provides a mock function with given fields: ctx
func (_m *MockApiController) Refresh(ctx context.Context) error {
	ret := _m.Called(ctx)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context) error); ok {
		r0 = rf(ctx)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockApiController creates a new instance of MockApiController. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockApiController(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockApiController {
	mock := &MockApiController{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
